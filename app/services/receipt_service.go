// Package services provides external service integrations and technical concerns like notifications, receipts and caching
package services

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jashub/parcelhub/utils"
)

// Receipt service error constants
var (
	ErrReceiptExpired = errors.New("receipt has expired")
	ErrReceiptInvalid = errors.New("invalid receipt")
)

const receiptTokenType = "collection_receipt"

// ReceiptService signs and verifies collection receipts
type ReceiptService interface {
	Issue(claims ReceiptClaims) (string, error)
	Verify(receipt string) (*ReceiptClaims, error)
}

// ReceiptClaims is the content of a collection receipt
type ReceiptClaims struct {
	ReceiptID      string    `json:"receipt_id"`
	TrackingNumber string    `json:"tracking_number"`
	PayerName      string    `json:"payer_name"`
	Method         string    `json:"method"`
	BasePrice      float64   `json:"base_price"`
	OverdueCharge  float64   `json:"overdue_charge"`
	TotalPrice     float64   `json:"total_price"`
	DaysHeld       int       `json:"days_held"`
	Currency       string    `json:"currency"`
	PaidAt         time.Time `json:"paid_at"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// ReceiptServiceImpl implements ReceiptService
type ReceiptServiceImpl struct {
	ttl           time.Duration
	signingMethod jwt.SigningMethod
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	secretKey     []byte
	useRSAKeys    bool
	issuer        string
	audience      string
}

// NewReceiptService creates a receipt service signing with HS256, or RS256 when useRSAKeys is set
func NewReceiptService(ttl time.Duration, issuer, audience string, useRSAKeys bool, privateKeyPEM, publicKeyPEM, secretKey string) (ReceiptService, error) {
	s := &ReceiptServiceImpl{
		ttl:        ttl,
		useRSAKeys: useRSAKeys,
		issuer:     issuer,
		audience:   audience,
	}
	if s.ttl <= 0 {
		s.ttl = utils.ReceiptTTL
	}

	if useRSAKeys {
		var err error
		s.privateKey, s.publicKey, err = parseRSAKeys(privateKeyPEM, publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA keys: %w", err)
		}
		s.signingMethod = jwt.SigningMethodRS256
	} else {
		if secretKey == "" {
			return nil, fmt.Errorf("secret key is required when not using RSA keys")
		}
		s.secretKey = []byte(secretKey)
		s.signingMethod = jwt.SigningMethodHS256
	}

	return s, nil
}

// parseRSAKeys parses RSA private and public keys from PEM format
func parseRSAKeys(privateKeyPEM, publicKeyPEM string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, nil, fmt.Errorf("both private and public keys are required")
	}

	privateKeyBlock, _ := pem.Decode([]byte(privateKeyPEM))
	if privateKeyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode private key")
	}
	privateKey, err := x509.ParsePKCS1PrivateKey(privateKeyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicKeyBlock, _ := pem.Decode([]byte(publicKeyPEM))
	if publicKeyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode public key")
	}
	publicKey, err := x509.ParsePKIXPublicKey(publicKeyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaPublicKey, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("public key is not RSA")
	}

	return privateKey, rsaPublicKey, nil
}

// Issue signs a receipt. IssuedAt and ExpiresAt are set by the service.
func (s *ReceiptServiceImpl) Issue(claims ReceiptClaims) (string, error) {
	if claims.ReceiptID == "" {
		return "", fmt.Errorf("receipt id is required")
	}
	now := utils.UTCNow()

	mc := jwt.MapClaims{
		"jti":            claims.ReceiptID,
		"sub":            claims.TrackingNumber,
		"token_type":     receiptTokenType,
		"payer_name":     claims.PayerName,
		"method":         claims.Method,
		"base_price":     claims.BasePrice,
		"overdue_charge": claims.OverdueCharge,
		"total_price":    claims.TotalPrice,
		"days_held":      claims.DaysHeld,
		"currency":       utils.Currency,
		"paid_at":        claims.PaidAt.UTC().Unix(),
		"iat":            now.Unix(),
		"exp":            now.Add(s.ttl).Unix(),
		"iss":            s.issuer,
		"aud":            s.audience,
	}

	token := jwt.NewWithClaims(s.signingMethod, mc)
	if s.useRSAKeys {
		return token.SignedString(s.privateKey)
	}
	return token.SignedString(s.secretKey)
}

// Verify checks the receipt signature, audience and expiry and returns its claims
func (s *ReceiptServiceImpl) Verify(receipt string) (*ReceiptClaims, error) {
	opts := []jwt.ParserOption{jwt.WithIssuedAt()}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	parsedToken, err := jwt.Parse(receipt, func(token *jwt.Token) (any, error) {
		if s.useRSAKeys {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrReceiptExpired
		}
		return nil, ErrReceiptInvalid
	}
	if !parsedToken.Valid {
		return nil, ErrReceiptInvalid
	}

	mc, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrReceiptInvalid
	}
	if tt, _ := mc["token_type"].(string); tt != receiptTokenType {
		return nil, ErrReceiptInvalid
	}

	receiptID, ok0 := mc["jti"].(string)
	tracking, ok1 := mc["sub"].(string)
	payer, ok2 := mc["payer_name"].(string)
	method, ok3 := mc["method"].(string)
	base, ok4 := mc["base_price"].(float64)
	overdue, ok5 := mc["overdue_charge"].(float64)
	total, ok6 := mc["total_price"].(float64)
	days, ok7 := mc["days_held"].(float64)
	paidAt, ok8 := mc["paid_at"].(float64)
	iat, ok9 := mc["iat"].(float64)
	exp, ok10 := mc["exp"].(float64)
	if !ok0 || !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 || !ok7 || !ok8 || !ok9 || !ok10 {
		return nil, ErrReceiptInvalid
	}
	currency, _ := mc["currency"].(string)

	out := &ReceiptClaims{
		ReceiptID:      receiptID,
		TrackingNumber: tracking,
		PayerName:      payer,
		Method:         method,
		BasePrice:      base,
		OverdueCharge:  overdue,
		TotalPrice:     total,
		DaysHeld:       int(days),
		Currency:       currency,
		PaidAt:         time.Unix(int64(paidAt), 0).UTC(),
		IssuedAt:       time.Unix(int64(iat), 0).UTC(),
		ExpiresAt:      time.Unix(int64(exp), 0).UTC(),
	}

	return out, nil
}
