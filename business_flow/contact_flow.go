package businessflow

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/jashub/parcelhub/app/dto"
	"github.com/jashub/parcelhub/app/services"
	"github.com/jashub/parcelhub/models"
	"github.com/jashub/parcelhub/repository"
	"github.com/jashub/parcelhub/utils"
)

// ContactFlow handles the public contact form and its admin inbox
type ContactFlow interface {
	Captcha(ctx context.Context, metadata *ClientMetadata) (*dto.CaptchaChallengeResponse, error)
	Create(ctx context.Context, req *dto.CreateContactMessageRequest, metadata *ClientMetadata) (*dto.CreateContactMessageResponse, error)
	AdminList(ctx context.Context, req *dto.AdminListContactMessagesRequest, metadata *ClientMetadata) (*dto.AdminListContactMessagesResponse, error)
	MarkRead(ctx context.Context, uuid string, metadata *ClientMetadata) (*dto.ContactMessageResponse, error)
	Delete(ctx context.Context, uuid string, metadata *ClientMetadata) error
}

// ContactFlowImpl implements ContactFlow
type ContactFlowImpl struct {
	repo    repository.ContactMessageRepository
	captcha services.CaptchaService
}

func NewContactFlow(repo repository.ContactMessageRepository, captcha services.CaptchaService) ContactFlow {
	return &ContactFlowImpl{repo: repo, captcha: captcha}
}

func (f *ContactFlowImpl) Captcha(ctx context.Context, metadata *ClientMetadata) (*dto.CaptchaChallengeResponse, error) {
	ch, err := f.captcha.GenerateRotate(ctx)
	if err != nil {
		return nil, NewBusinessError("CAPTCHA_GENERATION_FAILED", "Failed to generate captcha", err)
	}
	return &dto.CaptchaChallengeResponse{
		ChallengeID:       ch.ID,
		MasterImageBase64: ch.MasterImageBase64,
		ThumbImageBase64:  ch.ThumbImageBase64,
		ImageSize:         ch.ImageSize,
		ExpiresAt:         ch.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (f *ContactFlowImpl) Create(ctx context.Context, req *dto.CreateContactMessageRequest, metadata *ClientMetadata) (*dto.CreateContactMessageResponse, error) {
	if !f.captcha.VerifyRotate(ctx, req.CaptchaID, req.CaptchaAngle) {
		return nil, ErrInvalidCaptcha
	}

	msg := &models.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
	}
	if metadata != nil && metadata.IPAddress != "" {
		msg.IPAddress = utils.ToPtr(metadata.IPAddress)
	}

	if err := f.repo.Save(ctx, msg); err != nil {
		return nil, NewBusinessError("CREATE_CONTACT_MESSAGE_FAILED", "Failed to store message", err)
	}
	log.Printf("contact message %s stored: %q", msg.UUID, utils.Truncate(msg.Subject, 60))

	return &dto.CreateContactMessageResponse{
		Message:   "Message received, we will get back to you soon",
		UUID:      msg.UUID.String(),
		CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (f *ContactFlowImpl) AdminList(ctx context.Context, req *dto.AdminListContactMessagesRequest, metadata *ClientMetadata) (resp *dto.AdminListContactMessagesResponse, err error) {
	defer func() {
		if err != nil && !IsInvalidPageSize(err) {
			err = NewBusinessError("ADMIN_LIST_CONTACT_MESSAGES_FAILED", "Failed to list contact messages", err)
		}
	}()

	page, pageSize, err := pagination(req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}

	filter := models.ContactMessageFilter{Unread: req.Unread}
	if email := nonEmpty(req.Email); email != nil {
		lower := strings.ToLower(*email)
		filter.Email = &lower
	}

	total, err := f.repo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows, err := f.repo.ByFilter(ctx, filter, "", int(pageSize), offsetOf(page, pageSize))
	if err != nil {
		return nil, err
	}
	unread, err := f.repo.Count(ctx, models.ContactMessageFilter{Unread: utils.ToPtr(true)})
	if err != nil {
		return nil, err
	}

	items := make([]dto.ContactMessageDTO, 0, len(rows))
	for _, m := range rows {
		items = append(items, ToContactMessageDTO(m))
	}

	return &dto.AdminListContactMessagesResponse{
		Message:    "Contact messages retrieved successfully",
		Items:      items,
		Unread:     unread,
		Pagination: dto.NewPaginationInfo(total, page, pageSize),
	}, nil
}

func (f *ContactFlowImpl) byUUID(ctx context.Context, id string) (*models.ContactMessage, error) {
	if _, err := utils.ParseUUID(id); err != nil {
		return nil, ErrContactMessageNotFound
	}
	msg, err := f.repo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("GET_CONTACT_MESSAGE_FAILED", "Failed to load contact message", err)
	}
	if msg == nil {
		return nil, ErrContactMessageNotFound
	}
	return msg, nil
}

// MarkRead is idempotent; the first read time is kept
func (f *ContactFlowImpl) MarkRead(ctx context.Context, uuid string, metadata *ClientMetadata) (*dto.ContactMessageResponse, error) {
	msg, err := f.byUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if msg.ReadAt == nil {
		now := utils.UTCNow()
		if err := f.repo.MarkRead(ctx, msg.ID, now); err != nil {
			return nil, NewBusinessError("MARK_CONTACT_MESSAGE_READ_FAILED", "Failed to mark message as read", err)
		}
		msg.ReadAt = &now
	}
	return &dto.ContactMessageResponse{Message: "Message marked as read", Item: ToContactMessageDTO(msg)}, nil
}

func (f *ContactFlowImpl) Delete(ctx context.Context, uuid string, metadata *ClientMetadata) error {
	msg, err := f.byUUID(ctx, uuid)
	if err != nil {
		return err
	}
	ok, err := f.repo.Delete(ctx, msg.ID)
	if err != nil {
		return NewBusinessError("DELETE_CONTACT_MESSAGE_FAILED", "Failed to delete message", err)
	}
	if !ok {
		return ErrContactMessageNotFound
	}
	return nil
}
