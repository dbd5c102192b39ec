package models

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openResetDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}, &PasswordReset{}))
	return db
}

func TestGenerateToken_HexAndUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		token, err := GenerateToken()
		require.NoError(t, err)
		require.Len(t, token, 64)

		raw, err := hex.DecodeString(token)
		require.NoError(t, err)
		assert.Len(t, raw, 32)

		assert.False(t, seen[token], "duplicate token %s", token)
		seen[token] = true
	}
}

func TestPasswordReset_StoresUserAndRedirect(t *testing.T) {
	db := openResetDB(t)

	user := User{Email: " Ana@Example.com ", Password: "hash"}
	require.NoError(t, db.Create(&user).Error)
	require.Len(t, user.ID, 36)

	token, err := GenerateToken()
	require.NoError(t, err)
	reset := PasswordReset{
		UserID:    user.ID,
		Token:     token,
		Email:     user.Email,
		Redirect:  "https://app.example.com/update-password",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, db.Create(&reset).Error)

	var stored PasswordReset
	require.NoError(t, db.Preload("User").Where("token = ?", token).First(&stored).Error)
	assert.Equal(t, user.ID, stored.UserID)
	assert.Equal(t, "ana@example.com", stored.User.Email)
	assert.Equal(t, "https://app.example.com/update-password", stored.Redirect)
	assert.True(t, stored.IsValid())

	// 用过的令牌保留回跳地址，但不再有效
	require.NoError(t, db.Model(&stored).Update("used", true).Error)
	var used PasswordReset
	require.NoError(t, db.First(&used, stored.ID).Error)
	assert.True(t, used.Used)
	assert.False(t, used.IsExpired())
	assert.False(t, used.IsValid())
	assert.Equal(t, stored.Redirect, used.Redirect)

	// 令牌唯一
	dup := PasswordReset{UserID: user.ID, Token: token, Email: user.Email, ExpiresAt: time.Now().Add(time.Minute)}
	assert.Error(t, db.Create(&dup).Error)
}

func TestPasswordReset_ExpiredToken(t *testing.T) {
	p := &PasswordReset{UserID: "u1", Redirect: "https://x.test/cb", ExpiresAt: time.Now().Add(-time.Minute)}
	assert.True(t, p.IsExpired())
	assert.False(t, p.IsValid())
	assert.Equal(t, "password_resets", PasswordReset{}.TableName())
}
