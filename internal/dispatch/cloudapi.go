package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/siyana/storefront/internal/event"
	"github.com/siyana/storefront/pkg/httpclient"
)

// CloudAPIConfig configures the WhatsApp Business Cloud API sender.
type CloudAPIConfig struct {
	BaseURL        string // e.g. https://graph.facebook.com/v20.0
	PhoneNumberID  string
	AccessToken    string
	MerchantNumber string
}

// Enabled reports whether every field needed to send is set.
func (c CloudAPIConfig) Enabled() bool {
	return c.BaseURL != "" && c.PhoneNumberID != "" && c.AccessToken != "" && c.MerchantNumber != ""
}

type textMessage struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Text             textMessageBody `json:"text"`
}

type textMessageBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// CloudAPINotifier sends each submitted order to the merchant's WhatsApp.
type CloudAPINotifier struct {
	client httpclient.Doer
	cfg    CloudAPIConfig
	logger *slog.Logger
}

var _ event.Notifier = (*CloudAPINotifier)(nil)

// NewCloudAPINotifier creates a notifier that posts through client, which
// is normally a circuit-broken *httpclient.Client.
func NewCloudAPINotifier(client httpclient.Doer, cfg CloudAPIConfig, logger *slog.Logger) *CloudAPINotifier {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &CloudAPINotifier{client: client, cfg: cfg, logger: logger}
}

// MerchantMessage is the text the merchant receives for an order.
func MerchantMessage(o event.OrderSubmittedData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New order %s from %s", o.OrderID, o.UserName)
	if o.UserEmail != "" {
		fmt.Fprintf(&b, " <%s>", o.UserEmail)
	}
	b.WriteString("\n\n")
	b.WriteString(o.Summary)
	return b.String()
}

// NotifyOrderSubmitted posts the order summary as a text message.
func (n *CloudAPINotifier) NotifyOrderSubmitted(ctx context.Context, o event.OrderSubmittedData) error {
	msg := textMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               NormalizePhone(n.cfg.MerchantNumber),
		Type:             "text",
		Text:             textMessageBody{Body: MerchantMessage(o)},
	}

	endpoint := fmt.Sprintf("%s/%s/messages", n.cfg.BaseURL, n.cfg.PhoneNumberID)
	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, endpoint,
		map[string]string{"Authorization": "Bearer " + n.cfg.AccessToken}, msg)
	if err != nil {
		return err
	}

	resp, err := n.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, "whatsapp")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	n.logger.InfoContext(ctx, "whatsapp message sent",
		slog.String("order_id", o.OrderID),
	)
	return nil
}

// LogNotifier records orders in the log when the Cloud API is not configured.
type LogNotifier struct {
	Logger *slog.Logger
}

var _ event.Notifier = LogNotifier{}

func (n LogNotifier) NotifyOrderSubmitted(ctx context.Context, o event.OrderSubmittedData) error {
	n.Logger.InfoContext(ctx, "order submitted, whatsapp cloud api disabled",
		slog.String("order_id", o.OrderID),
		slog.String("user_id", o.UserID),
		slog.String("total_amount", o.TotalAmount),
	)
	return nil
}
