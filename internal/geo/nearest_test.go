package geo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type site struct {
	id string
	at Coordinate
}

func siteAt(s site) Coordinate { return s.at }

func TestNearest(t *testing.T) {
	sites := []site{
		{"woodlands", woodlands},
		{"marina", marinaBay},
		{"raffles", rafflesPlace},
	}

	m, err := Nearest(Coordinate{Lat: 1.2801, Lng: 103.8544}, sites, siteAt)
	require.NoError(t, err)
	assert.Equal(t, "marina", m.Item.id)
	assert.Equal(t, 1, m.Index)
	assert.InDelta(t, DistanceMeters(Coordinate{Lat: 1.2801, Lng: 103.8544}, marinaBay), m.DistanceMeters, 1e-9)
}

func TestNearest_ExactHit(t *testing.T) {
	m, err := Nearest(woodlands, []site{{"raffles", rafflesPlace}, {"woodlands", woodlands}}, siteAt)
	require.NoError(t, err)
	assert.Equal(t, "woodlands", m.Item.id)
	assert.Equal(t, 0.0, m.DistanceMeters)
}

func TestNearest_TieKeepsFirst(t *testing.T) {
	sites := []site{{"a", marinaBay}, {"b", marinaBay}, {"c", marinaBay}}
	m, err := Nearest(rafflesPlace, sites, siteAt)
	require.NoError(t, err)
	assert.Equal(t, "a", m.Item.id)
	assert.Equal(t, 0, m.Index)
}

func TestNearest_Empty(t *testing.T) {
	_, err := Nearest(rafflesPlace, []site{}, siteAt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyInput))

	_, err = Nearest[site](rafflesPlace, nil, siteAt)
	assert.ErrorIs(t, err, ErrEmptyInput)
}
