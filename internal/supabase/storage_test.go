package supabase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wedding-ai-backend/internal/supabase"
)

func TestGeneratedImagePath(t *testing.T) {
	assert.Equal(t, "users/u1/generations/j1/0.jpg", supabase.GeneratedImagePath("u1", "j1", 0, "image/jpeg"))
	assert.Equal(t, "users/u1/generations/j1/3.png", supabase.GeneratedImagePath("u1", "j1", 3, "image/png"))
	assert.Equal(t, "users/u1/generations/j1/1.jpg", supabase.GeneratedImagePath("u1", "j1", 1, ""))
}

func TestStorageClient_GetPublicURL(t *testing.T) {
	client, err := supabase.NewStorageClient("https://project.supabase.co/", "service-key", "wedding-photos")
	require.NoError(t, err)

	assert.Equal(t,
		"https://project.supabase.co/storage/v1/object/public/wedding-photos/users/u1/generations/j1/0.jpg",
		client.GetPublicURL("users/u1/generations/j1/0.jpg"))
}

func TestNewStorageClient_RequiresBucket(t *testing.T) {
	_, err := supabase.NewStorageClient("https://project.supabase.co", "service-key", "")
	assert.Error(t, err)
}
