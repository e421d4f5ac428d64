package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgOk            = `Ok!`
	MsgUnexpectedErr = "An unexpected error occurred. Please try again."
	MsgVersionInfo   = "Version: %s\nBuilt: %s"
	MsgStartPrompt   = "Send a photo of the affected skin area to start an analysis."
	MsgNotAvailable  = "This feature is not available right now."
)

const MsgWelcome = `
	*Welcome to SkinWise!*

	Send a clear, well-lit photo of the affected skin area and I will suggest what the condition might be, how severe it looks and what may help.

	You have %s left.

	Other things I can do:
	/ingredients - read a product's ingredient label
	/check - check a product against your last diagnosis
	/history - show your recent analyses
	/terms - read the disclaimer
`

const MsgTerms = `
	*Disclaimer*

	SkinWise uses AI to give general skincare information. It is not a medical device and does not provide a diagnosis.
	Always consult a doctor or dermatologist about any skin concern, especially if it is painful, spreading or changing.
`

// =============================================================================
// Status messages
// =============================================================================

const (
	MsgStatusUnlimited = "You have unlimited analyses."
	MsgStatusPaid      = "Your plan includes unlimited analyses."
	MsgStatusTrials    = "You have %s left."
)

// =============================================================================
// Image messages
// =============================================================================

const (
	MsgAnalyzingImage       = "Analyzing your photo..."
	MsgReadingIngredients   = "Reading the ingredient label..."
	MsgCheckingProduct      = "Checking the product against your *%s* diagnosis..."
	MsgImageDownloadFailed  = "I couldn't download that image. Please send it again."
	MsgSendIngredientsPhoto = "Send a photo of the product's ingredient list."
	MsgSendCheckPhoto       = "Send a photo of the product's ingredient list and I will check it against your *%s* diagnosis."
	MsgCheckNeedsDiagnosis  = "Analyze a skin photo first, then use /check to compare products against the diagnosis."
	MsgFollowUpHint         = "You can ask me questions about this result, or send /new to start over."
)

// =============================================================================
// Follow-up messages
// =============================================================================

const (
	MsgConversationFull = "We've reached the limit for questions about this result. Send /new to start a new analysis."
	MsgTurnInProgress   = "I'm still answering your previous question."
)

// =============================================================================
// History messages
// =============================================================================

const (
	MsgHistoryEmpty  = "You don't have any analyses yet."
	MsgHistoryHeader = "*Your recent analyses:*"
)

// =============================================================================
// Admin command messages
// =============================================================================

const (
	MsgAdminUsage         = "Usage:\n`/admin grant <user>`\n`/admin revoke <user>`\n`/admin trials <user> <count>`\n\nUse -1 for unlimited trials."
	MsgAdminInvalidUser   = "Invalid user. Give a Telegram ID or a full profile ID."
	MsgAdminInvalidTrials = "Invalid trial count. Give a number, or -1 for unlimited."
	MsgAdminGranted       = "✅ Granted paid access to `%s`."
	MsgAdminRevoked       = "🗑 Revoked paid access from `%s`."
	MsgAdminTrialsSet     = "✅ Set trials of `%s` to %d."
)
