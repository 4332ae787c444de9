package vk

import (
	"context"
	"fmt"

	"github.com/SevereCloud/vksdk/v2/api"
	"github.com/SevereCloud/vksdk/v2/object"
	"github.com/example/matchbot/internal/apperr"
	"github.com/example/matchbot/pkg/models"
)

// MembersPageSize is the largest page groups.getMembers returns
const MembersPageSize = 1000

// RussiaCountryID scopes city lookups
const RussiaCountryID = 1

const memberFields = "city,sex,bdate,relation,can_write_private_message,last_seen"

// City is a database.getCities item
type City struct {
	ID    int64
	Title string
}

// Community is a groups.search item
type Community struct {
	ID         int64
	Name       string
	ScreenName string
}

// Profile is a users.get / groups.getMembers item
type Profile struct {
	ID                     int64
	FirstName              string
	LastName               string
	Sex                    int
	City                   *City
	BDate                  string
	Relation               int
	CanWritePrivateMessage int
	IsClosed               bool
	CanAccessClosed        bool
}

func profileFrom(u object.UsersUser) Profile {
	p := Profile{
		ID:              int64(u.ID),
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Sex:             int(u.Sex),
		BDate:           u.Bdate,
		Relation:        int(u.Relation),
		IsClosed:        bool(u.IsClosed),
		CanAccessClosed: bool(u.CanAccessClosed),
	}
	if u.City.ID != 0 {
		p.City = &City{ID: int64(u.City.ID), Title: u.City.Title}
	}
	if bool(u.CanWritePrivateMessage) {
		p.CanWritePrivateMessage = 1
	}
	return p
}

// CityID returns the id of the profile's city or 0 when it is hidden
func (p Profile) CityID() int64 {
	if p.City == nil {
		return 0
	}
	return p.City.ID
}

// CanMessage reports whether the profile accepts private messages
func (p Profile) CanMessage() bool {
	return p.CanWritePrivateMessage == 1
}

// PhotosHidden reports whether the profile photos cannot be read
func (p Profile) PhotosHidden() bool {
	return p.IsClosed && !p.CanAccessClosed
}

// ToUser converts the profile into a stored user
func (p Profile) ToUser() *models.User {
	u := &models.User{
		UserID:     p.ID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Sex:        p.Sex,
		ProfileURL: models.VKProfileURL(p.ID),
	}
	if p.City != nil {
		u.CityID = p.City.ID
		u.CityTitle = p.City.Title
	}
	return u
}

// PhotoSize is one rendition of a photo
type PhotoSize struct {
	Type   string
	URL    string
	Width  int
	Height int
}

// Photo is a photos.get item
type Photo struct {
	ID      int64
	OwnerID int64
	Sizes   []PhotoSize
}

func photoFrom(ph object.PhotosPhoto) Photo {
	p := Photo{ID: int64(ph.ID), OwnerID: int64(ph.OwnerID)}
	for _, s := range ph.Sizes {
		p.Sizes = append(p.Sizes, PhotoSize{
			Type:   s.Type,
			URL:    s.URL,
			Width:  int(s.Width),
			Height: int(s.Height),
		})
	}
	return p
}

// Attachment returns the reference messages.send accepts
func (p Photo) Attachment() string {
	return fmt.Sprintf("photo%d_%d", p.OwnerID, p.ID)
}

// LargestURL returns the URL of the biggest size
func (p Photo) LargestURL() string {
	best, bestArea := "", -1
	for _, s := range p.Sizes {
		if area := s.Width * s.Height; area > bestArea {
			best, bestArea = s.URL, area
		}
	}
	return best
}

// Directory answers profile, city, community and membership queries
type Directory struct {
	vk *api.VK
}

// NewDirectory wraps a client authorised with a user read token
func NewDirectory(vk *api.VK) *Directory {
	return &Directory{vk: vk}
}

// GetUser returns the profile of a single user
func (d *Directory) GetUser(ctx context.Context, userID int64) (*Profile, error) {
	users, err := d.vk.UsersGet(api.Params{
		"user_ids": userID,
		"fields":   "city,sex",
	}.WithContext(ctx))
	if err != nil {
		return nil, classify("users.get", err)
	}
	if len(users) == 0 {
		return nil, apperr.New(apperr.ErrNotFound, "users.get")
	}
	p := profileFrom(users[0])
	return &p, nil
}

// GetLatestPhoto returns the newest profile photo of a user, or nil if the
// user has none
func (d *Directory) GetLatestPhoto(ctx context.Context, userID int64) (*Photo, error) {
	resp, err := d.vk.PhotosGet(api.Params{
		"owner_id": userID,
		"album_id": "profile",
		"rev":      1,
		"count":    1,
	}.WithContext(ctx))
	if err != nil {
		return nil, classify("photos.get", err)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	p := photoFrom(resp.Items[0])
	return &p, nil
}

// FindCity looks a city up by name
func (d *Directory) FindCity(ctx context.Context, query string) (*City, error) {
	resp, err := d.vk.DatabaseGetCities(api.Params{
		"country_id": RussiaCountryID,
		"q":          query,
		"count":      1,
		"need_all":   0,
	}.WithContext(ctx))
	if err != nil {
		return nil, classify("database.getCities", err)
	}
	if len(resp.Items) == 0 {
		return nil, apperr.New(apperr.ErrNotFound, "database.getCities")
	}
	c := resp.Items[0]
	return &City{ID: int64(c.ID), Title: c.Title}, nil
}

// SearchCommunity returns the top community for the city
func (d *Directory) SearchCommunity(ctx context.Context, cityID int64, query string) (*Community, error) {
	resp, err := d.vk.GroupsSearch(api.Params{
		"q":       query,
		"city_id": cityID,
		"sort":    6,
		"count":   1,
	}.WithContext(ctx))
	if err != nil {
		return nil, classify("groups.search", err)
	}
	if len(resp.Items) == 0 {
		return nil, apperr.New(apperr.ErrNotFound, "groups.search")
	}
	g := resp.Items[0]
	return &Community{ID: int64(g.ID), Name: g.Name, ScreenName: g.ScreenName}, nil
}

// GetMembers returns one page of community members starting at offset
func (d *Directory) GetMembers(ctx context.Context, communityID int64, offset, count int) ([]Profile, error) {
	resp, err := d.vk.GroupsGetMembersFields(api.Params{
		"group_id": communityID,
		"offset":   offset,
		"count":    count,
		"fields":   memberFields,
	}.WithContext(ctx))
	if err != nil {
		return nil, classify("groups.getMembers", err)
	}
	members := make([]Profile, 0, len(resp.Items))
	for _, u := range resp.Items {
		members = append(members, profileFrom(u))
	}
	return members, nil
}
