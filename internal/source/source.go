// Package source classifies a pasted video link into the kind of player that
// can show it.
package source

import (
	"fmt"
	"regexp"
	"strings"
)

type Kind string

const (
	KindYouTube  Kind = "youtube"
	KindBilibili Kind = "bilibili"
	KindDirect   Kind = "direct"
	KindOther    Kind = "other"
)

// CustomID is the video id reported for links that are neither YouTube nor Bilibili.
const CustomID = "custom"

// Source is a classified link.
//
// ID: video id (11 chars for YouTube, BV id for Bilibili, CustomID otherwise)
// Kind: player family
// Embed: reference handed to the player. The YouTube id, the Bilibili embed
// page, or the trimmed input unchanged.
type Source struct {
	ID    string `json:"id"`
	Kind  Kind   `json:"kind"`
	Embed string `json:"embed"`
}

var (
	youTubeRe  = regexp.MustCompile(`^.*((youtu.be/)|(v/)|(/u/\w/)|(embed/)|(watch\?))\??v?=?([^#&?]*).*`)
	bilibiliRe = regexp.MustCompile(`video/(BV[a-zA-Z0-9]+)`)
)

const bilibiliEmbed = "https://player.bilibili.com/player.html?bvid=%s&page=1&high_quality=1&danmaku=0"

// Parse classifies raw. It never fails: unknown links become KindOther.
func Parse(raw string) Source {
	trimmed := strings.TrimSpace(raw)

	if m := youTubeRe.FindStringSubmatch(trimmed); m != nil && len(m[7]) == 11 {
		return Source{ID: m[7], Kind: KindYouTube, Embed: m[7]}
	}

	if strings.Contains(trimmed, "bilibili.com") {
		id := ""
		if m := bilibiliRe.FindStringSubmatch(trimmed); m != nil {
			id = m[1]
		}
		return Source{ID: id, Kind: KindBilibili, Embed: fmt.Sprintf(bilibiliEmbed, id)}
	}

	return Source{ID: CustomID, Kind: KindOther, Embed: trimmed}
}

// HasClock reports whether the kind is played by an embedded player whose
// position can be polled.
func (k Kind) HasClock() bool {
	return k == KindYouTube
}
