package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestItemImageObjectName(t *testing.T) {
	id := uuid.MustParse("6f1c2e1a-8a0b-4f55-9d0e-2d8c4b1a9e10")
	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	name := ItemImageObjectName("seller-1", "image/png", id, at)
	assert.Equal(t, "public/custom-orders/seller-1/6f1c2e1a-8a0b-4f55-9d0e-2d8c4b1a9e10-20240501103000.png", name)

	assert.Equal(t, "public/custom-orders/seller-1/6f1c2e1a-8a0b-4f55-9d0e-2d8c4b1a9e10-20240501103000.jpg",
		ItemImageObjectName("seller-1", "image/jpg", id, at.In(time.FixedZone("IST", 5*3600+1800)).Add(0)))
}

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, IsSupportedImage("image/jpeg"))
	assert.True(t, IsSupportedImage("image/webp"))
	assert.False(t, IsSupportedImage("application/pdf"))
	assert.False(t, IsSupportedImage(""))
}
