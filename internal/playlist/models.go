package playlist

import (
	"errors"
	"strings"
)

// Playlist is a named collection of videos. The name is the identifier seen by
// callers; storage backends may keep a surrogate id of their own.
type Playlist struct {
	Name   string  `json:"name"`
	Videos []Video `json:"videos"`
}

// Video belongs to exactly one playlist and is addressed by its title within it.
// Logo and UpdateURL are optional; an empty string means "not set".
type Video struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Logo      string `json:"logo,omitempty"`
	UpdateURL string `json:"updateUrl,omitempty"`
}

var (
	ErrNotFound = errors.New("playlist or video not found")
	ErrConflict = errors.New("name already in use")
	ErrInvalid  = errors.New("invalid input")
	ErrUpstream = errors.New("update url returned an unusable response")
)

// normalize trims every field. Required fields are checked by validate.
func (v Video) normalize() Video {
	return Video{
		Title:     strings.TrimSpace(v.Title),
		URL:       strings.TrimSpace(v.URL),
		Logo:      strings.TrimSpace(v.Logo),
		UpdateURL: strings.TrimSpace(v.UpdateURL),
	}
}

func (v Video) validate() error {
	if v.Title == "" || len(v.Title) > 255 {
		return errors.Join(ErrInvalid, errors.New("title must be between 1 and 255 characters"))
	}
	if v.URL == "" {
		return errors.Join(ErrInvalid, errors.New("url is required"))
	}
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 255 {
		return "", errors.Join(ErrInvalid, errors.New("name must be between 1 and 255 characters"))
	}
	return name, nil
}

// FindVideo returns the video with the given title, if present.
func (p Playlist) FindVideo(title string) (Video, bool) {
	for _, v := range p.Videos {
		if v.Title == title {
			return v, true
		}
	}
	return Video{}, false
}
