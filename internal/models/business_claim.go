package models

import "time"

// ClaimStatus is the review state of a business claim.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

// BusinessClaim links a user account to a vendor listing it may represent.
type BusinessClaim struct {
	BaseModel

	UserID     string      `gorm:"type:varchar(128);not null;uniqueIndex:idx_business_claims_user_vendor" json:"user_id"`
	VendorID   string      `gorm:"type:varchar(128);not null;uniqueIndex:idx_business_claims_user_vendor;index" json:"vendor_id"`
	VendorName string      `gorm:"type:varchar(255)" json:"vendor_name"`
	Status     ClaimStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Note       string      `gorm:"type:text" json:"note"`
	ReviewedBy *string     `gorm:"type:varchar(128)" json:"reviewed_by"`
	ReviewedAt *time.Time  `json:"reviewed_at"`
}
