package handlers

import (
	"time"

	"github.com/Togather-Foundation/eventhub/internal/domain/accounts"
	"github.com/Togather-Foundation/eventhub/internal/domain/entities"
)

type tokensResponse struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

func toTokens(t accounts.Tokens) tokensResponse {
	return tokensResponse{
		AccessToken:           t.AccessToken,
		RefreshToken:          t.RefreshToken,
		AccessTokenExpiresAt:  t.AccessTokenExpiresAt.UTC(),
		RefreshTokenExpiresAt: t.RefreshTokenExpiresAt.UTC(),
	}
}

type registerResponse struct {
	UserID           int64 `json:"user_id"`
	IsEmailConfirmed bool  `json:"is_email_confirmed"`
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func toCategory(c entities.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name}
}

type eventResponse struct {
	ID              int64             `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Location        string            `json:"location"`
	DateTime        time.Time         `json:"date_time"`
	MaxParticipants int               `json:"max_participants"`
	ImagePath       *string           `json:"image_path"`
	CategoryID      int64             `json:"category_id"`
	Category        *categoryResponse `json:"category,omitempty"`
}

func toEvent(e entities.Event) eventResponse {
	out := eventResponse{
		ID:              e.ID,
		Title:           e.Title,
		Description:     e.Description,
		Location:        e.Location,
		DateTime:        e.DateTime.UTC(),
		MaxParticipants: e.MaxParticipants,
		ImagePath:       e.ImagePath,
		CategoryID:      e.CategoryID,
	}
	if e.Category != nil {
		c := toCategory(*e.Category)
		out.Category = &c
	}
	return out
}

type userResponse struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Email       string    `json:"email"`
}

func toUser(u entities.User) userResponse {
	return userResponse{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DateOfBirth: u.DateOfBirth.UTC(),
		Email:       u.Email,
	}
}

type participantResponse struct {
	IsAdded          bool   `json:"is_added"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type imageResponse struct {
	ImagePath string `json:"image_path"`
}
