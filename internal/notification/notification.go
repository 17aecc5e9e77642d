/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/settlr/internal/request"
)

// Notifier reports operational failures, such as a document that refused to cancel,
// to the configured Slack webhook. A Notifier without a webhook only logs.
type Notifier struct {
	webhookURL string
	client     *request.Client
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     request.NewClient(webhookURL, 10*time.Second, nil),
	}
}

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

func slackPayload(err error, at time.Time) slackMessage {
	return slackMessage{Blocks: []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: "Error From Settlr 🐞", Emoji: true}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Error:*\n%v", err)}}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Time:*\n%v", at.Format(time.RFC822))}}},
	}}
}

// SlackNotification posts err to the webhook and returns the delivery error, if any.
func (n *Notifier) SlackNotification(ctx context.Context, err error) error {
	_, callErr := n.client.Do(ctx, http.MethodPost, n.webhookURL, nil, slackPayload(err, time.Now()), nil)
	return callErr
}

// NotifyError logs systemError and, when Slack is configured, delivers it in the background.
func (n *Notifier) NotifyError(systemError error) {
	logrus.Error(systemError)
	if n == nil || n.webhookURL == "" {
		return
	}

	go func(systemError error) {
		if err := n.SlackNotification(context.Background(), systemError); err != nil {
			logrus.WithError(err).Warn("failed to deliver slack notification")
		}
	}(systemError)
}
