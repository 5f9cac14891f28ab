package repositories

import "github.com/desertthunder/playhead/internal/models"

func modelsPlaylist(s string) models.PlaylistID { return models.PlaylistID(s) }
func modelsTrack(s string) models.APITrackID    { return models.APITrackID(s) }
