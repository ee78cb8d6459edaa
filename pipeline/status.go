package pipeline

import (
	"github.com/creatorclaim/publisher/interfaces"
	"github.com/ethereum/go-ethereum/common"
)

// Stage identifies a step of the publish state machine.
type Stage int

const (
	StageIdle Stage = iota
	StageUploadingAsset
	StageEnsuringAssetFunds
	StageUploadingMetadataDoc
	StageEnsuringMetadataFunds
	StageVerifyingMetadata
	StageMinting
	StagePersisting
	StageComplete
	StageFailed
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageUploadingAsset:
		return "uploading_asset"
	case StageEnsuringAssetFunds:
		return "ensuring_asset_funds"
	case StageUploadingMetadataDoc:
		return "uploading_metadata"
	case StageEnsuringMetadataFunds:
		return "ensuring_metadata_funds"
	case StageVerifyingMetadata:
		return "verifying_metadata"
	case StageMinting:
		return "minting"
	case StagePersisting:
		return "persisting"
	case StageComplete:
		return "complete"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Severity classifies a status update. Callers branch on this instead of
// sniffing message text.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusUpdate is one progress report from a run. Updates are emitted
// before each stage's network operation, so an observer always sees "about
// to do X" rather than a stale message during a long network call.
type StatusUpdate struct {
	RunID    string
	Stage    Stage
	Severity Severity
	Message  string
}

// Observer receives status updates for a run. Called synchronously from the
// run's goroutine; implementations must not block.
type Observer func(StatusUpdate)

// Result is the terminal outcome of a successful run.
type Result struct {
	RunID              string
	CertificateAddress common.Address
	AssetReceipt       interfaces.UploadReceipt
	MetadataReceipt    interfaces.UploadReceipt
	Record             interfaces.PublishRecord

	// Warnings lists non-fatal problems encountered on the success path,
	// such as an unverified metadata document or a failed record write.
	Warnings []string
}
