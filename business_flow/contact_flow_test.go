package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jashub/parcelhub/app/dto"
	"github.com/jashub/parcelhub/app/services"
	"github.com/jashub/parcelhub/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaptcha struct {
	angle float64
	fail  bool
}

func (c *fakeCaptcha) GenerateRotate(context.Context) (*services.RotateChallenge, error) {
	if c.fail {
		return nil, services.ErrCaptchaUnavailable
	}
	return &services.RotateChallenge{
		ID:                "7d3f0a5e-2b1c-4c8e-9f4a-6b5d4c3b2a10",
		MasterImageBase64: "master",
		ThumbImageBase64:  "thumb",
		ImageSize:         220,
		ExpiresAt:         testNow.Add(2 * time.Minute),
	}, nil
}

func (c *fakeCaptcha) VerifyRotate(_ context.Context, _ string, angle float64) bool {
	return angle == c.angle
}

func contactRequest(angle float64) *dto.CreateContactMessageRequest {
	return &dto.CreateContactMessageRequest{
		Name:         "Lim Wei",
		Email:        "Lim.Wei@Student.Example.edu",
		Subject:      "Missing parcel",
		Message:      "My parcel shows received but the shelf is empty.",
		CaptchaID:    "7d3f0a5e-2b1c-4c8e-9f4a-6b5d4c3b2a10",
		CaptchaAngle: angle,
	}
}

func TestContactFlow_Captcha(t *testing.T) {
	flow := NewContactFlow(&fakeContactRepo{newStore()}, &fakeCaptcha{})
	resp, err := flow.Captcha(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 220, resp.ImageSize)
	assert.Equal(t, testNow.Add(2*time.Minute).Format(time.RFC3339), resp.ExpiresAt)

	failing := NewContactFlow(&fakeContactRepo{newStore()}, &fakeCaptcha{fail: true})
	_, err = failing.Captcha(context.Background(), nil)
	var be *BusinessError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "CAPTCHA_GENERATION_FAILED", be.Code)
}

func TestContactFlow_CreateAndManage(t *testing.T) {
	s := newStore()
	flow := NewContactFlow(&fakeContactRepo{s}, &fakeCaptcha{angle: 90})
	ctx := context.Background()

	_, err := flow.Create(ctx, contactRequest(45), nil)
	assert.True(t, IsInvalidCaptcha(err))

	created, err := flow.Create(ctx, contactRequest(90), NewClientMetadata("203.0.113.9", "ua"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.UUID)

	_, err = flow.Create(ctx, contactRequest(90), nil)
	require.NoError(t, err)

	list, err := flow.AdminList(ctx, &dto.AdminListContactMessagesRequest{}, nil)
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, int64(2), list.Unread)

	first := list.Items[1]
	assert.Equal(t, created.UUID, first.UUID)
	assert.Equal(t, "lim.wei@student.example.edu", first.Email)
	require.NotNil(t, first.IPAddress)
	assert.Equal(t, "203.0.113.9", *first.IPAddress)

	read, err := flow.MarkRead(ctx, created.UUID, nil)
	require.NoError(t, err)
	require.NotNil(t, read.Item.ReadAt)

	again, err := flow.MarkRead(ctx, created.UUID, nil)
	require.NoError(t, err)
	assert.Equal(t, *read.Item.ReadAt, *again.Item.ReadAt)

	unread, err := flow.AdminList(ctx, &dto.AdminListContactMessagesRequest{Unread: utils.ToPtr(true)}, nil)
	require.NoError(t, err)
	assert.Len(t, unread.Items, 1)
	assert.Equal(t, int64(1), unread.Unread)

	byEmail, err := flow.AdminList(ctx, &dto.AdminListContactMessagesRequest{Email: utils.ToPtr("LIM.WEI@student.example.edu")}, nil)
	require.NoError(t, err)
	assert.Len(t, byEmail.Items, 2)

	require.NoError(t, flow.Delete(ctx, created.UUID, nil))
	assert.True(t, IsContactMessageNotFound(flow.Delete(ctx, created.UUID, nil)))
	assert.True(t, IsContactMessageNotFound(flow.Delete(ctx, "garbage", nil)))
}
