package config

type NotesConfig interface {
	GetNoteTitleMaxLength() int
	GetNoteContentMaxLength() int
}

type Notes struct{}

var _ NotesConfig = Notes{}

func (Notes) GetNoteTitleMaxLength() int {
	return getEnvInt("NOTE_TITLE_MAX_LENGTH", 15)
}

func (Notes) GetNoteContentMaxLength() int {
	return getEnvInt("NOTE_CONTENT_MAX_LENGTH", 200)
}
