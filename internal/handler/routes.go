package handler

import "github.com/go-chi/chi/v5"

// Mount registers the session-protected API routes on r. The caller applies
// auth.RequireSession to r before mounting.
func Mount(r chi.Router, profiles *ProfileHandler, social *SocialHandler, cat *CatalogHandler) {
	r.Get("/users", profiles.HandleSearch)
	r.Route("/users/{username}", func(r chi.Router) {
		r.Get("/", profiles.HandleGet)
		r.Get("/followers", social.HandleFollowers)
		r.Get("/following", social.HandleFollowing)
		r.Post("/following/{followee}", social.HandleFollow)
		r.Delete("/following/{followee}", social.HandleUnfollow)
		r.Put("/albums/{albumId}", profiles.HandleEditAlbum)
		r.Patch("/albums/{albumId}", profiles.HandleToggleFlag)
		r.Delete("/albums/{albumId}", profiles.HandleDeleteAlbum)
	})

	r.Post("/posts/{owner}/{albumId}/likes", social.HandleLike)
	r.Delete("/posts/{owner}/{albumId}/likes", social.HandleUnlike)
	r.Get("/feed", social.HandleFeed)

	r.Route("/catalog", func(r chi.Router) {
		r.Get("/search", cat.HandleSearch)
		r.Get("/albums/{id}", cat.HandleAlbum)
		r.Get("/albums/{id}/tracks", cat.HandleTracks)
		r.Get("/artists/{id}/albums", cat.HandleArtistAlbums)
		r.Get("/new-releases", cat.HandleNewReleases)
		r.Get("/playlists", cat.HandlePlaylists)
		r.Get("/playlists/{id}/tracks", cat.HandlePlaylistTracks)
	})
}
