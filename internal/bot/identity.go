package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/internal/view"
)

// Identity holds the running bot's own profile, fetched once at startup.
type Identity struct {
	mu       sync.RWMutex
	user     platform.User
	override string
}

// NewIdentity creates an empty identity. A non-empty username overrides the one reported by the platform.
func NewIdentity(username string) *Identity {
	return &Identity{override: username}
}

// Load fetches the bot profile.
func (i *Identity) Load(ctx context.Context, api platform.API) (platform.User, error) {
	me, err := api.BotInfo(ctx)
	if err != nil {
		return platform.User{}, fmt.Errorf("get bot info: %w", err)
	}
	i.Set(me)
	return i.User(), nil
}

func (i *Identity) Set(u platform.User) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.override != "" {
		u.Username = i.override
	}
	i.user = u
}

func (i *Identity) User() platform.User {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.user
}

func (i *Identity) Username() string {
	return i.User().Username
}

func (i *Identity) UserID() int64 {
	return i.User().UserID
}

// View is the identity as seen by update normalization.
func (i *Identity) View() view.Bot {
	u := i.User()
	return view.Bot{UserID: u.UserID, Username: u.Username}
}
