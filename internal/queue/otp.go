package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// TypeOTP marks a login code waiting for delivery.
const TypeOTP = "otp"

// OTPDelivery is the body of a TypeOTP message.
type OTPDelivery struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// OTPNotifier hands login codes to a worker through q.
type OTPNotifier struct {
	q Queue
}

func NewOTPNotifier(q Queue) *OTPNotifier {
	return &OTPNotifier{q: q}
}

// SendOTP publishes the code for asynchronous delivery.
func (n *OTPNotifier) SendOTP(ctx context.Context, email, code string) error {
	body, err := json.Marshal(OTPDelivery{Email: email, Code: code})
	if err != nil {
		return err
	}
	return n.q.Publish(ctx, Message{Type: TypeOTP, Body: body})
}

// DecodeOTP extracts the delivery from a TypeOTP message.
func DecodeOTP(msg Message) (OTPDelivery, error) {
	if msg.Type != TypeOTP {
		return OTPDelivery{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	var d OTPDelivery
	if err := json.Unmarshal(msg.Body, &d); err != nil {
		return OTPDelivery{}, fmt.Errorf("decode otp delivery: %w", err)
	}
	return d, nil
}
