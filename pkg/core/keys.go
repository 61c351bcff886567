package core

// Shared state keys agreed between the host and the built-in plugins.
const (
	KeyEditorContent    = "markdown_editor_content"
	KeyEditorStats      = "markdown_editor_stats"
	KeyEditorLoad       = "markdown_editor_load"
	KeyEditorAction     = "markdown_editor_action"
	KeyEditorCursorLine = "markdown_editor_cursor_line"
	KeyEditorCursorIdx  = "markdown_editor_cursor_idx"
	KeyEditorGotoLine   = "markdown_editor_goto_line"

	KeyOutlineHeadings = "outline_headings"
	KeyOutlineActive   = "outline_active_heading"

	KeyAtmosphereSentiment = "atmosphere_sentiment"
	KeyAtmosphereMood      = "atmosphere_mood"
	KeyAtmosphereAnalyzing = "atmosphere_analyzing"

	KeyActiveDocument = "active_document_id"
)
