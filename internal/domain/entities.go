package domain

import "time"

// User описывает пользователя бота, идентифицируется chat_id.
type User struct {
	ChatID           int64
	NotificationTime *string
	IsActive         bool
	LastUpdate       *time.Time
}

// Website описывает поддерживаемый сайт из каталога.
type Website struct {
	ID   int64
	Name string
	Link string
}

// Account связывает пользователя с сайтом. Login и Password хранят шифротекст.
type Account struct {
	ID        int64
	ChatID    int64
	WebsiteID int64
	Website   Website
	Login     string
	Password  string
}

// Bookmark описывает одну отслеживаемую закладку аккаунта.
type Bookmark struct {
	ID                int64
	AccountID         int64
	Title             string
	Image             string
	LastChapterTitle  string
	TimeOfLastUpdate  *time.Time
	LinkOnTitle       string
	LinkOnLastChapter string
}

// RawBookmark описывает запись, полученную от адаптера сайта.
// UpdatedAt уже переведён из относительного текста в абсолютное время или nil.
type RawBookmark struct {
	Title        string
	ImageURL     string
	ChapterTitle string
	UpdatedAt    *time.Time
	TitleLink    string
	ChapterLink  string
}

// ReconcileResult содержит итог сверки закладок одного аккаунта.
type ReconcileResult struct {
	Inserted int
	Updated  int
	Skipped  int
}

// Catalog содержит встроенный список поддерживаемых сайтов. При старте синхронизируется по имени.
var Catalog = []Website{
	{Name: "manga-scans", Link: "https://manga-scans.com"},
}
