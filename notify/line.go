package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// LINE pushes a plain-text message through the LINE Messaging API.
type LINE struct {
	api *messaging_api.MessagingApiAPI
	loc *time.Location
}

// NewLINE creates a LINE notifier.  endpoint may be empty for the public API;
// loc is the zone the submission time is shown in.
func NewLINE(channelToken, endpoint string, loc *time.Location) (*LINE, error) {
	var opts []messaging_api.MessagingApiAPIOption
	if endpoint != "" {
		opts = append(opts, messaging_api.WithEndpoint(endpoint))
	}
	api, err := messaging_api.NewMessagingApiAPI(channelToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("line: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &LINE{api: api, loc: loc}, nil
}

func (l *LINE) Notify(ctx context.Context, m Message) error {
	req := &messaging_api.PushMessageRequest{
		To: m.ExternalUserID,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: Text(m, l.loc)},
		},
	}
	if _, err := l.api.WithContext(ctx).PushMessage(req, ""); err != nil {
		return fmt.Errorf("line: push: %w", err)
	}
	return nil
}

// Text renders the confirmation sent to the submitter.
func Text(m Message, loc *time.Location) string {
	return fmt.Sprintf("✅ %s 您好！\n\n您的證件已上傳成功！\n\n📋 團號：%s\n📱 電話：%s\n⏰ 時間：%s\n\n如有任何問題，請隨時與我們聯繫。感謝您的配合！🙏",
		m.Name, m.GroupID, m.Phone, m.Time.In(loc).Format("2006/01/02 15:04:05"))
}
