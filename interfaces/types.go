// Package interfaces defines the core interfaces and types for the
// certificate publishing system. It provides the contract between different
// components without implementation details.
package interfaces

import (
	"encoding/json"
	"fmt"
	"time"
)

// AssetAttribute is a single trait attached to an asset's metadata document.
// The JSON field names follow the metadata schema consumed by wallets and
// marketplaces.
type AssetAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// AssetMetadata is the metadata document uploaded to the storage network and
// referenced by the minted certificate. Immutable once constructed; it is
// serialized verbatim.
type AssetMetadata struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Image       string           `json:"image"`
	Attributes  []AssetAttribute `json:"attributes"`
}

// Encode serializes the metadata document exactly as it is uploaded.
func (m AssetMetadata) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata document: %w", err)
	}
	return data, nil
}

// UploadTag is a key/value pair attached to a storage-network upload.
type UploadTag struct {
	Name  string
	Value string
}

// Well-known upload tag names.
const (
	TagContentType = "Content-Type"
	TagAppName     = "App-Name"
	TagUploader    = "Uploader"
	TagVersion     = "Version"
	TagTitle       = "Title"
)

// AppName is the fixed application identifier attached as the App-Name tag
// to every upload.
const AppName = "CreatorClaim"

// MetadataDocVersion is the Version tag applied to metadata uploads.
const MetadataDocVersion = "0.1.0"

// UploadReceipt identifies a successful storage-network upload. Produced once
// per upload call, never mutated.
type UploadReceipt struct {
	// ContentID is the storage-network transaction id for the payload.
	ContentID string

	// URI is the public gateway URI derived deterministically from the
	// content id.
	URI string
}

// PublishRecord is a local ledger entry for a completed publish operation.
// Created exactly once, after the chain mint reports success.
type PublishRecord struct {
	Title              string    `json:"title"`
	ImageURI           string    `json:"imageUri"`
	MetadataURI        string    `json:"metadataUri"`
	CertificateAddress string    `json:"certificateAddress"`
	Timestamp          time.Time `json:"timestamp"`
}

// RoyaltyEvent is a royalty payment notification produced externally by the
// royalty distribution service and delivered verbatim over the event stream.
type RoyaltyEvent struct {
	ID               string  `json:"id"`
	Timestamp        string  `json:"timestamp"`
	Amount           float64 `json:"amount"`
	Source           string  `json:"source"`
	CertificateID    string  `json:"certificateId"`
	CertificateTitle string  `json:"certificateTitle"`
	RecipientWallet  string  `json:"recipientWallet"`
}
