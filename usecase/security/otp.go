package security

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/internal/ratelimit"
)

const defaultOTPLength = 6

// OTPRequest asks for a code to be delivered to destination over channel.
type OTPRequest struct {
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
}

// OTPReceipt confirms a dispatched code without revealing it.
type OTPReceipt struct {
	Channel   string    `json:"channel"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (uc *UseCase) requireMFA(ctx context.Context, tenantID string) error {
	on, err := uc.flagEnabled(ctx, tenantID, domain.FlagMultiFactorAuth)
	if err != nil {
		return err
	}
	if !on {
		return domain.ErrMFADisabled
	}
	return nil
}

// SendOTP issues a fresh code for the actor, replacing any pending one.
func (uc *UseCase) SendOTP(ctx context.Context, actor domain.Actor, req OTPRequest) (*OTPReceipt, error) {
	if err := uc.requireMFA(ctx, actor.TenantID); err != nil {
		return nil, err
	}

	var tag string
	switch req.Channel {
	case ChannelEmail:
		tag = "required,email"
	case ChannelSMS:
		tag = "required,e164"
	default:
		return nil, domain.NewValidationError("validation failed", domain.FieldError{Field: "channel", Message: "channel must be one of [email sms]"})
	}
	if err := uc.validator.Var("destination", req.Destination, tag); err != nil {
		return nil, err
	}
	sender, ok := uc.senders[req.Channel]
	if !ok {
		return nil, domain.NewValidationError("validation failed", domain.FieldError{Field: "channel", Message: fmt.Sprintf("channel %s is not configured", req.Channel)})
	}

	rule := ratelimit.Rule{Name: "otp", Limit: uc.cfg.OTPPerHour, Window: time.Hour}
	if err := uc.limiter.Allow(ctx, rule, actor.TenantID+":"+actor.ID); err != nil {
		return nil, err
	}

	length := defaultOTPLength
	cfg, found, err := uc.securityConfig(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	if found && cfg.MFA.OTPLength > 0 {
		length = cfg.MFA.OTPLength
	}

	code, err := generateCode(length)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "generate otp", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "hash otp", err)
	}

	now := uc.now()
	challenge := &domain.OTPChallenge{
		TenantID:  actor.TenantID,
		ActorID:   actor.ID,
		Channel:   req.Channel,
		CodeHash:  hash,
		ExpiresAt: now.Add(uc.cfg.OTPTTL),
		CreatedAt: now,
	}
	if err := uc.otps.Save(ctx, challenge); err != nil {
		return nil, domain.AsInternal("store otp", err)
	}

	if err := sender.Send(ctx, req.Destination, code); err != nil {
		_ = uc.otps.Delete(ctx, actor.TenantID, actor.ID)
		uc.logger.Error("otp delivery failed",
			zap.String("tenant_id", actor.TenantID),
			zap.String("channel", req.Channel),
			zap.Error(err))
		return nil, domain.WrapError(domain.ErrCodeInternal, "deliver otp", err)
	}

	uc.logger.Info("otp sent",
		zap.String("tenant_id", actor.TenantID),
		zap.String("actor_id", actor.ID),
		zap.String("channel", req.Channel))
	return &OTPReceipt{Channel: req.Channel, ExpiresAt: challenge.ExpiresAt}, nil
}

// VerifyOTP checks code against the pending challenge. A matching code is consumed.
func (uc *UseCase) VerifyOTP(ctx context.Context, actor domain.Actor, code string) error {
	if err := uc.requireMFA(ctx, actor.TenantID); err != nil {
		return err
	}
	if err := uc.validator.Var("code", code, "required,numeric,min=4,max=10"); err != nil {
		return err
	}

	challenge, err := uc.otps.Get(ctx, actor.TenantID, actor.ID)
	if err != nil {
		return domain.AsInternal("load otp", err)
	}
	if challenge.Expired(uc.now()) {
		_ = uc.otps.Delete(ctx, actor.TenantID, actor.ID)
		return domain.ErrOTPExpired
	}
	if challenge.Attempts >= uc.cfg.OTPMaxAttempts {
		_ = uc.otps.Delete(ctx, actor.TenantID, actor.ID)
		return domain.ErrOTPAttemptsExceeded
	}

	if bcrypt.CompareHashAndPassword(challenge.CodeHash, []byte(code)) != nil {
		challenge.Attempts++
		if challenge.Attempts >= uc.cfg.OTPMaxAttempts {
			_ = uc.otps.Delete(ctx, actor.TenantID, actor.ID)
			return domain.ErrOTPAttemptsExceeded
		}
		if err := uc.otps.Save(ctx, challenge); err != nil {
			return domain.AsInternal("store otp", err)
		}
		return domain.ErrOTPMismatch
	}

	if err := uc.otps.Delete(ctx, actor.TenantID, actor.ID); err != nil {
		return domain.AsInternal("consume otp", err)
	}
	return nil
}

func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	ten := big.NewInt(10)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
