// Copyright 2026 The Atelier Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package project

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Platform is a publishing destination.
type Platform string

const (
	PlatformInstagram Platform = "INSTAGRAM"
	PlatformFacebook  Platform = "FACEBOOK"
	PlatformLinkedIn  Platform = "LINKEDIN"
	PlatformTikTok    Platform = "TIKTOK"
	PlatformYouTube   Platform = "YOUTUBE"
	PlatformGoogleAds Platform = "GOOGLE_ADS"
)

// Format is the shape of a creative on a platform.
type Format string

const (
	FormatFeed     Format = "FEED"
	FormatStory    Format = "STORY"
	FormatReels    Format = "REELS"
	FormatCarousel Format = "CAROUSEL"
	FormatBanner   Format = "BANNER"
	FormatVideo    Format = "VIDEO"
)

var (
	knownPlatforms = map[Platform]bool{
		PlatformInstagram: true, PlatformFacebook: true, PlatformLinkedIn: true,
		PlatformTikTok: true, PlatformYouTube: true, PlatformGoogleAds: true,
	}
	knownFormats = map[Format]bool{
		FormatFeed: true, FormatStory: true, FormatReels: true,
		FormatCarousel: true, FormatBanner: true, FormatVideo: true,
	}
)

// MaxEstimatedCreatives bounds the creative count of a project, whether
// given directly or summed over its deliverables.
const MaxEstimatedCreatives = 10_000

// Deliverable is one requested (platform, format, quantity) line.
type Deliverable struct {
	Platform Platform `json:"platform"`
	Format   Format   `json:"format"`
	Quantity int      `json:"quantity"`
}

// Validate checks the line against the known platforms and formats.
func (d Deliverable) Validate() error {
	if !knownPlatforms[d.Platform] {
		return fmt.Errorf("unknown platform %q", d.Platform)
	}
	if !knownFormats[d.Format] {
		return fmt.Errorf("unknown format %q", d.Format)
	}
	if d.Quantity < 1 || d.Quantity > MaxEstimatedCreatives {
		return fmt.Errorf("quantity for %s/%s must be between 1 and %d", d.Platform, d.Format, MaxEstimatedCreatives)
	}
	return nil
}

// ValidateDeliverables validates every line and bounds their total, so
// TotalQuantity of a validated list cannot overflow.
func ValidateDeliverables(ds []Deliverable) error {
	total := 0
	for i, d := range ds {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("deliverables[%d]: %w", i, err)
		}
		total += d.Quantity
		if total > MaxEstimatedCreatives {
			return fmt.Errorf("deliverables total must not exceed %d", MaxEstimatedCreatives)
		}
	}
	return nil
}

// ParseDeliverables strictly decodes and validates a JSON array of
// deliverables. An empty or null document yields no deliverables.
func ParseDeliverables(raw []byte) ([]Deliverable, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []Deliverable{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var ds []Deliverable
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode deliverables: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode deliverables: trailing data")
	}
	if err := ValidateDeliverables(ds); err != nil {
		return nil, err
	}
	if ds == nil {
		ds = []Deliverable{}
	}
	return ds, nil
}

// TotalQuantity sums the quantities of all lines.
func TotalQuantity(ds []Deliverable) int {
	total := 0
	for _, d := range ds {
		total += d.Quantity
	}
	return total
}
