package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	PayDisabled = 0
	PayEnabled  = 1
)

// Pay 支付方式，Code 为网关侧的通道编码。
type Pay struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name   string `gorm:"size:64;not null" json:"name"`
	Code   string `gorm:"size:64;not null" json:"code"`
	Status int    `gorm:"not null;default:1" json:"status"`
}

func (Pay) TableName() string { return "pays" }
