package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeShopDomain(t *testing.T) {
	assert.Equal(t, "my-shop.myshopify.com", NormalizeShopDomain("https://My-Shop.myshopify.com/products."))
	assert.Equal(t, "my-shop.myshopify.com", NormalizeShopDomain("My-Shop.myshopify.com."))
}

func TestValidShopDomain(t *testing.T) {
	assert.True(t, ValidShopDomain("my-shop.myshopify.com"))
	assert.False(t, ValidShopDomain(""))
	assert.False(t, ValidShopDomain("not-a-shop-domain.com"))
}
