package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	repo, err := NewRepository(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestInsertAndListAll(t *testing.T) {
	repo := newTestRepository(t)

	sub := &Subscription{
		GuildID:        "guild-1",
		ChannelID:      "channel-1",
		MessageID:      "message-1",
		ServerHostname: "example.com:2303",
	}
	require.NoError(t, repo.Insert(sub))
	assert.NotZero(t, sub.ID)

	subs, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, subs, 1)

	assert.Equal(t, "guild-1", subs[0].GuildID)
	assert.Equal(t, "channel-1", subs[0].ChannelID)
	assert.Equal(t, "message-1", subs[0].MessageID)
	assert.Equal(t, "example.com:2303", subs[0].ServerHostname)
	assert.False(t, subs[0].CreatedAt.IsZero())
}

func TestInsertDuplicateLeavesStoreUnchanged(t *testing.T) {
	repo := newTestRepository(t)

	first := &Subscription{
		GuildID:        "guild-1",
		ChannelID:      "channel-1",
		MessageID:      "message-1",
		ServerHostname: "example.com:2303",
	}
	require.NoError(t, repo.Insert(first))

	// Same channel and server, different message: must be rejected
	dup := &Subscription{
		GuildID:        "guild-1",
		ChannelID:      "channel-1",
		MessageID:      "message-2",
		ServerHostname: "example.com:2303",
	}
	err := repo.Insert(dup)
	assert.ErrorIs(t, err, ErrDuplicate)

	subs, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "message-1", subs[0].MessageID)
}

func TestSameServerInDifferentChannels(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Insert(&Subscription{
		GuildID: "g", ChannelID: "channel-1", MessageID: "m1", ServerHostname: "example.com:2303",
	}))
	require.NoError(t, repo.Insert(&Subscription{
		GuildID: "g", ChannelID: "channel-2", MessageID: "m2", ServerHostname: "example.com:2303",
	}))

	subs, err := repo.ListAll()
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestDeleteByChannelRemovesOnlyThatChannel(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Insert(&Subscription{
		GuildID: "g", ChannelID: "channel-c", MessageID: "m1", ServerHostname: "one.example.com:2303",
	}))
	require.NoError(t, repo.Insert(&Subscription{
		GuildID: "g", ChannelID: "channel-c", MessageID: "m2", ServerHostname: "two.example.com:2303",
	}))
	require.NoError(t, repo.Insert(&Subscription{
		GuildID: "g", ChannelID: "channel-d", MessageID: "m3", ServerHostname: "three.example.com:2303",
	}))

	count, err := repo.DeleteByChannel("channel-c")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	subs, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "channel-d", subs[0].ChannelID)
}

func TestDeleteByChannelEmptyIsNoOp(t *testing.T) {
	repo := newTestRepository(t)

	count, err := repo.DeleteByChannel("channel-without-subs")
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestListAllOrderIsStable(t *testing.T) {
	repo := newTestRepository(t)

	hosts := []string{"c.example.com:1", "a.example.com:2", "b.example.com:3"}
	for i, host := range hosts {
		require.NoError(t, repo.Insert(&Subscription{
			GuildID: "g", ChannelID: "channel", MessageID: string(rune('a' + i)), ServerHostname: host,
		}))
	}

	// Insertion order, twice in a row
	for i := 0; i < 2; i++ {
		subs, err := repo.ListAll()
		require.NoError(t, err)
		require.Len(t, subs, 3)
		for j, host := range hosts {
			assert.Equal(t, host, subs[j].ServerHostname)
		}
	}
}

func TestListByChannel(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Insert(&Subscription{
		GuildID: "g", ChannelID: "channel-c", MessageID: "m1", ServerHostname: "one.example.com:2303",
	}))
	require.NoError(t, repo.Insert(&Subscription{
		GuildID: "g", ChannelID: "channel-d", MessageID: "m2", ServerHostname: "two.example.com:2303",
	}))

	subs, err := repo.ListByChannel("channel-c")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "one.example.com:2303", subs[0].ServerHostname)

	subs, err = repo.ListByChannel("channel-x")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.db")

	repo, err := NewRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(&Subscription{
		GuildID: "g", ChannelID: "channel", MessageID: "m", ServerHostname: "example.com:2303",
	}))
	require.NoError(t, repo.Close())

	reopened, err := NewRepository(path)
	require.NoError(t, err)
	defer reopened.Close()

	subs, err := reopened.ListAll()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "example.com:2303", subs[0].ServerHostname)
}
