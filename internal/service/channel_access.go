package service

import (
	"strconv"
	"strings"

	"github.com/quickbite/internal/constants"
	"github.com/quickbite/internal/repository"
)

// ChannelAccess 实时频道订阅鉴权
type ChannelAccess struct {
	cartRepo    repository.CartRepository
	catalogRepo repository.CatalogRepository
}

// NewChannelAccess 创建频道鉴权
func NewChannelAccess(cartRepo repository.CartRepository, catalogRepo repository.CatalogRepository) *ChannelAccess {
	return &ChannelAccess{cartRepo: cartRepo, catalogRepo: catalogRepo}
}

// Allow 判断用户能否订阅频道：本人 user 频道、店主 store 频道、车主或未移除成员的 cart 频道
func (a *ChannelAccess) Allow(userID uint, channel string) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	kind, id, ok := splitChannel(channel)
	if !ok {
		return false, nil
	}
	switch kind {
	case "user":
		return id == userID, nil
	case "store":
		store, err := a.catalogRepo.GetStore(id)
		if err != nil {
			return false, err
		}
		return store != nil && store.OwnerID == userID, nil
	case "cart":
		cart, err := a.cartRepo.GetByID(id)
		if err != nil {
			return false, err
		}
		if cart == nil {
			return false, nil
		}
		if cart.UserID == userID {
			return true, nil
		}
		if !cart.IsGroup() {
			return false, nil
		}
		participant, err := a.cartRepo.GetParticipant(cart.ID, userID)
		if err != nil {
			return false, err
		}
		return participant != nil && participant.Status != constants.ParticipantStatusRemoved, nil
	}
	return false, nil
}

func splitChannel(channel string) (string, uint, bool) {
	kind, rawID, found := strings.Cut(strings.TrimSpace(channel), ":")
	if !found || kind == "" {
		return "", 0, false
	}
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		return "", 0, false
	}
	return kind, uint(id), true
}
