// Package notify delivers metric updates to subscribers over e-mail,
// Telegram and AMQP.
package notify

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Kind is the delivery channel of a subscriber address.
type Kind string

const (
	KindEmail    Kind = "email"
	KindTelegram Kind = "telegram"
	KindAMQP     Kind = "amqp"
)

const (
	telegramPrefix = "telegram:"
	amqpPrefix     = "amqp:"
)

// ErrInvalidAddress is returned for subscriber addresses no channel accepts.
var ErrInvalidAddress = errors.New("invalid subscriber address")

var routingKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,255}$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Address is a parsed subscriber.
type Address struct {
	Kind   Kind
	Target string
}

func (a Address) String() string {
	switch a.Kind {
	case KindTelegram:
		return telegramPrefix + a.Target
	case KindAMQP:
		return amqpPrefix + a.Target
	default:
		return a.Target
	}
}

// ParseAddress recognizes "telegram:<chat_id>", "amqp:<routing_key>" and
// plain e-mail addresses.
func ParseAddress(raw string) (Address, error) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)

	case strings.HasPrefix(s, telegramPrefix):
		target := strings.TrimPrefix(s, telegramPrefix)
		if _, err := strconv.ParseInt(target, 10, 64); err != nil {
			return Address{}, fmt.Errorf("%w: telegram chat id %q", ErrInvalidAddress, target)
		}
		return Address{Kind: KindTelegram, Target: target}, nil

	case strings.HasPrefix(s, amqpPrefix):
		target := strings.TrimPrefix(s, amqpPrefix)
		if !routingKeyPattern.MatchString(target) {
			return Address{}, fmt.Errorf("%w: routing key %q", ErrInvalidAddress, target)
		}
		return Address{Kind: KindAMQP, Target: target}, nil
	}

	if err := getValidator().Var(s, "required,email"); err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Address{Kind: KindEmail, Target: s}, nil
}
