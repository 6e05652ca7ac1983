package bootstrap

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/inlane-funnel/internal/config"
	"github.com/wolfman30/inlane-funnel/internal/messaging"
	"github.com/wolfman30/inlane-funnel/internal/notify"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

func TestBuildRedisClient(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logging.Discard(), false))

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), true)
	require.NotNil(t, client)
	defer client.Close()

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), true))
}

func TestBuildDatabaseDisabled(t *testing.T) {
	pool, db, err := BuildDatabase(context.Background(), &appconfig.Config{}, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, pool)
	assert.Nil(t, db)
}

func TestBuildFunctionsClientRequiresBaseURL(t *testing.T) {
	assert.Nil(t, BuildFunctionsClient(&appconfig.Config{}, nil, logging.Discard()))
	assert.NotNil(t, BuildFunctionsClient(&appconfig.Config{FunctionsBaseURL: "https://fn.example"}, nil, logging.Discard()))
}

func TestBuildOTPSender(t *testing.T) {
	sender, provider, reason := BuildOTPSender(&appconfig.Config{OTPProvider: "log"}, nil, logging.Discard())
	require.NotNil(t, sender)
	assert.Equal(t, messaging.OTPProviderLog, provider)
	assert.Empty(t, reason)

	sender, _, reason = BuildOTPSender(&appconfig.Config{OTPProvider: "twilio"}, nil, logging.Discard())
	assert.Nil(t, sender)
	assert.Contains(t, reason, "TWILIO_ACCOUNT_SID missing")
}

func TestBuildEmailSender(t *testing.T) {
	sender, provider := BuildEmailSender(context.Background(), &appconfig.Config{EmailProvider: "sendgrid"}, logging.Discard())
	assert.Equal(t, EmailProviderStub, provider)
	assert.IsType(t, &notify.StubEmailSender{}, sender)

	sender, provider = BuildEmailSender(context.Background(), &appconfig.Config{
		EmailProvider:     "sendgrid",
		SendGridAPIKey:    "SG.test",
		SendGridFromEmail: "leads@inlane.in",
	}, logging.Discard())
	assert.Equal(t, EmailProviderSendGrid, provider)
	assert.IsType(t, &notify.SendGridSender{}, sender)

	_, provider = BuildEmailSender(context.Background(), &appconfig.Config{EmailProvider: "carrier-pigeon"}, logging.Discard())
	assert.Equal(t, EmailProviderStub, provider)
}

func TestNotifyRecipients(t *testing.T) {
	got := NotifyRecipients(&appconfig.Config{LeadNotifyEmail: " ops@inlane.in, ,sales@inlane.in"})
	assert.Equal(t, []string{"ops@inlane.in", "sales@inlane.in"}, got)
	assert.Nil(t, NotifyRecipients(&appconfig.Config{}))
}
