package pipeline

import (
	"strings"

	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/model"
	"github.com/switch-900/Bitmap-BRC-420-indexer-sub000/validators"
)

// deployPrefix is the fixed JSON prefix every BRC-420 deploy payload
// starts with; a cheap string check against the preview is enough to
// route an inscription to the deploy validator without decoding the
// (possibly truncated) preview as JSON.
const deployPrefix = `{"p":"brc-420"`

const deployOpMarker = `"op":"deploy"`

// classify routes a preview (at most previewBytes of content, per
// Pipeline.ContentPreviewBytes) and its content type into the kind the
// rest of the pipeline dispatches on. It is a pure function: the same
// (preview, contentType) always yields the same kind.
func classify(preview []byte, contentType string) model.InscriptionKind {
	s := strings.TrimSpace(string(preview))

	if strings.HasPrefix(s, deployPrefix) && strings.Contains(s, deployOpMarker) {
		return model.KindBRC420Deploy
	}
	if _, err := validators.ParseMintReference(preview); err == nil {
		return model.KindBRC420Mint
	}
	if _, err := validators.ParseBitmapNumber(preview); err == nil {
		return model.KindBitmapClaim
	}
	if _, _, err := validators.ParseParcelContent(preview); err == nil {
		return model.KindParcelClaim
	}

	switch baseContentType(contentType) {
	case "application/json", "text/json":
		return model.KindJSON
	case "text/plain":
		return model.KindText
	default:
		return model.KindBinary
	}
}

// priorityOf maps a classified kind to the priority bucket the pipeline
// drains high to low. Skip-priority kinds are never enqueued at all.
func priorityOf(kind model.InscriptionKind) model.Priority {
	switch kind {
	case model.KindBRC420Deploy:
		return model.PriorityHigh
	case model.KindBRC420Mint, model.KindBitmapClaim, model.KindParcelClaim:
		return model.PriorityMedium
	case model.KindJSON, model.KindText:
		return model.PriorityLow
	default:
		return model.PrioritySkip
	}
}

// baseContentType strips any MIME parameters, e.g.
// "text/plain;charset=utf-8" -> "text/plain".
func baseContentType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.TrimSpace(ct)
}
