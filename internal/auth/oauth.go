package auth

import (
	"fmt"

	"golang.org/x/oauth2"
)

// Endpoint is Strava's OAuth endpoint
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://www.strava.com/oauth/authorize",
	TokenURL: "https://www.strava.com/oauth/token",
}

// Strava expects a single comma separated scope value
const scope = "read,activity:read_all"

// NewConfig builds the OAuth config for a client whose callback is served
// on localhost at port
func NewConfig(clientID, clientSecret string, port int) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     Endpoint,
		RedirectURL:  fmt.Sprintf("http://localhost:%d/callback", port),
		Scopes:       []string{scope},
	}
}

// AthleteID returns the athlete ID Strava includes in token responses, or 0
func AthleteID(tok *oauth2.Token) int64 {
	athlete, ok := tok.Extra("athlete").(map[string]any)
	if !ok {
		return 0
	}
	id, _ := athlete["id"].(float64)
	return int64(id)
}
