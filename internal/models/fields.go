package models

// Keys connectors use in RawItem.Fields and RawItem.Lists. The normalizer turns
// them into the typed metadata variant of the item's source.
const (
	FieldFilename     = "filename"
	FieldOriginalPath = "original_path"
	FieldWidth        = "width"
	FieldHeight       = "height"
	FieldFileSize     = "file_size"

	FieldFolder  = "folder"
	FieldAccount = "account"
	FieldCreated = "created"

	FieldFrom           = "from"
	FieldMessageID      = "message_id"
	FieldHasAttachments = "has_attachments"
	ListTo              = "to"
	ListCc              = "cc"

	FieldOrganizer       = "organizer"
	FieldDurationMinutes = "duration_minutes"
	FieldURL             = "url"
	ListParticipants     = "participants"
	ListActionItems      = "action_items"
)
