package tracker

import "github.com/samuelfneumann/qnet/timestep"

// EpisodeLength tracks and saves the lengths of episodes in an
// experiment. If the last episode does not finish, its length is not
// saved.
type EpisodeLength struct {
	episodeLengths []float64
	filename       string
}

// NewEpisodeLength returns a new EpisodeLength Tracker which will save
// its data at filename
func NewEpisodeLength(filename string) *EpisodeLength {
	return &EpisodeLength{filename: filename}
}

// Track caches the episode length if t is the last timestep of an
// episode
func (e *EpisodeLength) Track(t timestep.TimeStep) {
	if t.Last() {
		e.episodeLengths = append(e.episodeLengths, float64(t.Number))
	}
}

// Data returns the lengths of all finished episodes
func (e *EpisodeLength) Data() []float64 {
	return e.episodeLengths
}

// Save saves the tracked episode lengths to disk
func (e *EpisodeLength) Save() error {
	return save(e.filename, e.episodeLengths)
}
