package lark

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/travel-expense/internal/domain/entity"
)

// messageCreator is the IM endpoint the messenger posts to
type messageCreator interface {
	Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error)
}

// Messenger implements port.Notifier with Lark text messages
type Messenger struct {
	messages messageCreator
	logger   *zap.Logger
}

// NewMessenger creates a new Lark notifier
func NewMessenger(client *lark.Client, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages: client.Im.Message,
		logger:   logger,
	}
}

// Notify sends a text message to the user's Lark account
func (m *Messenger) Notify(ctx context.Context, user *entity.User, text string) error {
	if user.LarkOpenID == "" {
		return fmt.Errorf("user %d has no Lark open ID", user.ID)
	}
	if text == "" {
		return fmt.Errorf("content cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType("open_id").
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(user.LarkOpenID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.Int64("user_id", user.ID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.Int64("user_id", user.ID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent",
		zap.String("message_id", messageID),
		zap.Int64("user_id", user.ID))
	return nil
}
