package service

import (
	"strings"

	"github.com/quickbite/internal/models"
)

// orderTransitions 门店驱动的订单状态流转表
var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusPreparing},
	models.OrderStatusPreparing:  {models.OrderStatusFinished},
	models.OrderStatusFinished:   {models.OrderStatusDelivering},
	models.OrderStatusDelivering: {models.OrderStatusDone},
	models.OrderStatusDone:       {},
}

// cartTransitions 购物车状态流转表
var cartTransitions = map[models.CartStatus][]models.CartStatus{
	models.CartStatusActive:  {models.CartStatusLocking, models.CartStatusPlaced, models.CartStatusExpired},
	models.CartStatusLocking: {models.CartStatusActive, models.CartStatusPlaced},
	models.CartStatusPlaced:  {},
	models.CartStatusExpired: {},
}

// ParseOrderStatus 解析订单状态
func ParseOrderStatus(raw string) (models.OrderStatus, error) {
	status := models.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := orderTransitions[status]; !ok {
		return "", ErrInvalidOrderStatus
	}
	return status, nil
}

// ValidateOrderTransition 校验订单状态流转
func ValidateOrderTransition(from, to models.OrderStatus) error {
	if _, ok := orderTransitions[to]; !ok {
		return ErrInvalidOrderStatus
	}
	if from == to {
		return ErrOrderStatusAlreadySet
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return nil
		}
	}
	return ErrInvalidStatusTransition
}

// CanTransitionCart 判断购物车状态能否流转
func CanTransitionCart(from, to models.CartStatus) bool {
	for _, next := range cartTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
