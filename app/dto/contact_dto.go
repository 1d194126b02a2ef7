package dto

// CaptchaChallengeResponse is a rotate captcha to solve before posting a message
type CaptchaChallengeResponse struct {
	ChallengeID       string `json:"challenge_id"`
	MasterImageBase64 string `json:"master_image_base64"`
	ThumbImageBase64  string `json:"thumb_image_base64"`
	ImageSize         int    `json:"image_size"`
	ExpiresAt         string `json:"expires_at"`
}

// CreateContactMessageRequest is a message from the public contact form
type CreateContactMessageRequest struct {
	Name         string  `json:"name" validate:"required,min=2,max=120"`
	Email        string  `json:"email" validate:"required,email,max=255"`
	Subject      string  `json:"subject" validate:"required,min=3,max=200"`
	Message      string  `json:"message" validate:"required,min=10,max=5000"`
	CaptchaID    string  `json:"captcha_id" validate:"required,uuid"`
	CaptchaAngle float64 `json:"captcha_angle" validate:"gte=0,lte=360"`
}

// CreateContactMessageResponse confirms the message was stored
type CreateContactMessageResponse struct {
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	CreatedAt string `json:"created_at"`
}

// ContactMessageDTO is the admin view of a contact message
type ContactMessageDTO struct {
	UUID      string  `json:"uuid"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Subject   string  `json:"subject"`
	Message   string  `json:"message"`
	IPAddress *string `json:"ip_address,omitempty"`
	ReadAt    *string `json:"read_at,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// AdminListContactMessagesRequest filters contact messages
type AdminListContactMessagesRequest struct {
	Unread   *bool   `json:"unread,omitempty"`
	Email    *string `json:"email,omitempty" validate:"omitempty,max=255"`
	Page     uint    `json:"page,omitempty"`
	PageSize uint    `json:"page_size,omitempty"`
}

// AdminListContactMessagesResponse is a page of contact messages
type AdminListContactMessagesResponse struct {
	Message    string              `json:"message"`
	Items      []ContactMessageDTO `json:"items"`
	Unread     int64               `json:"unread"`
	Pagination PaginationInfo      `json:"pagination"`
}

// ContactMessageResponse wraps a single contact message
type ContactMessageResponse struct {
	Message string            `json:"message"`
	Item    ContactMessageDTO `json:"item"`
}
