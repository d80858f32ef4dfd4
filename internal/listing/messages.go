package listing

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
)

// =============================================================================
// Flow failure messages
// =============================================================================

const (
	MsgQuotaExceeded      = "You have reached your plan limit. Upgrade to continue."
	MsgPhotoFailed        = "Photo processing failed. Try again."
	MsgOCRFailed          = "Label recognition failed."
	MsgCategoriesFailed   = "Unable to fetch categories."
	MsgSpecificsFailed    = "Failed to load item specifics."
	MsgCompsFailed        = "Unable to load comparables."
	MsgTitlesFailed       = "Unable to generate titles right now."
	MsgPublishFailed      = "Publish failed. Check specifics and policies."
	MsgExportFailed       = "Unable to prepare the export kit."
	MsgSaveFailed         = "Your changes could not be saved."
	MsgUnknownTitle       = "That title option no longer exists."
	MsgInvalidPrice       = "Price must be greater than zero."
	MsgNoCategorySelected = "Choose a category first."
)

// =============================================================================
// Dashboard
// =============================================================================

const msgDashboardHeader = `
	Plan: %s (%d/%s listings used)
	eBay: %s
	Items: %d
`

func formatText(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}
