package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatsMarshalOneDecimalAverage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stats Stats
		want  string
	}{
		{
			Stats{TotalChannels: 2, TotalVideos: 100, AvgVideosPerChannel: 100},
			`{"total_channels":2,"total_videos":100,"avg_videos_per_channel":100.0}`,
		},
		{
			Stats{TotalChannels: 3, TotalVideos: 100, AvgVideosPerChannel: 33.3},
			`{"total_channels":3,"total_videos":100,"avg_videos_per_channel":33.3}`,
		},
		{
			Stats{},
			`{"total_channels":0,"total_videos":0,"avg_videos_per_channel":0.0}`,
		},
	}
	for _, tt := range tests {
		data, err := json.Marshal(tt.stats)
		require.NoError(t, err)
		require.Equal(t, tt.want, string(data))
	}
}

func TestStatsRoundTrip(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Stats{TotalChannels: 2, TotalVideos: 100, AvgVideosPerChannel: 100})
	require.NoError(t, err)

	var decoded Stats
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, int64(2), decoded.TotalChannels)
	require.InDelta(t, 100.0, decoded.AvgVideosPerChannel, 0.001)
}
