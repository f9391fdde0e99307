package subscription

import (
	"encoding/json"
	"math"

	"gorm.io/datatypes"
)

// Video progress is stored as a JSON array of completed video ids on the
// subscription row. Rows imported from the old system sometimes hold a bare
// count instead; because unlocking is strictly sequential, a count of N means
// the first N videos in strategy order are complete, so normalization can
// recover the set. Progress percentage and current video are always derived
// here, never persisted.

// NormalizeCompleted decodes the stored completed-videos value into a set of
// video ids. Unknown or malformed values normalize to the empty set.
func NormalizeCompleted(raw datatypes.JSON, orderedVideoIDs []uint) map[uint]bool {
	completed := make(map[uint]bool)
	if len(raw) == 0 {
		return completed
	}

	var ids []uint
	if err := json.Unmarshal(raw, &ids); err == nil {
		known := make(map[uint]bool, len(orderedVideoIDs))
		for _, id := range orderedVideoIDs {
			known[id] = true
		}
		for _, id := range ids {
			if known[id] {
				completed[id] = true
			}
		}
		return completed
	}

	// Legacy count form.
	var count int
	if err := json.Unmarshal(raw, &count); err == nil && count > 0 {
		if count > len(orderedVideoIDs) {
			count = len(orderedVideoIDs)
		}
		for _, id := range orderedVideoIDs[:count] {
			completed[id] = true
		}
	}
	return completed
}

// MarshalCompleted encodes the completed set back to its storage form,
// preserving strategy order so the column stays readable.
func MarshalCompleted(completed map[uint]bool, orderedVideoIDs []uint) datatypes.JSON {
	ids := make([]uint, 0, len(completed))
	for _, id := range orderedVideoIDs {
		if completed[id] {
			ids = append(ids, id)
		}
	}
	raw, _ := json.Marshal(ids)
	return datatypes.JSON(raw)
}

// EmptyCompleted is the stored form of "no videos completed".
func EmptyCompleted() datatypes.JSON {
	return datatypes.JSON([]byte("[]"))
}

// ProgressPercentage is completed-over-total, rounded to 2 decimals.
func ProgressPercentage(completed map[uint]bool, totalVideos int) float64 {
	if totalVideos <= 0 {
		return 0
	}
	return math.Round(float64(len(completed))/float64(totalVideos)*10000) / 100
}

// CurrentVideoID is the first incomplete video in strategy order, or 0 when
// every video is complete.
func CurrentVideoID(completed map[uint]bool, orderedVideoIDs []uint) uint {
	for _, id := range orderedVideoIDs {
		if !completed[id] {
			return id
		}
	}
	return 0
}

// CanAccessVideo gates sequential unlocking: the first video is always
// accessible, every later one only once its predecessor is complete.
func CanAccessVideo(completed map[uint]bool, orderedVideoIDs []uint, videoID uint) bool {
	for i, id := range orderedVideoIDs {
		if id != videoID {
			continue
		}
		if i == 0 {
			return true
		}
		return completed[orderedVideoIDs[i-1]]
	}
	return false
}
