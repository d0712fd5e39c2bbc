// Package cache keeps recently decoded images in memory so repeated runs of
// the same project do not decode the same files again.
//
// Entries are keyed by path together with the file's size and modification
// time, so a changed file is decoded again. The cache is bounded by entry
// count and by age:
//
//	images := cache.NewImages(cache.Config{Size: 64, TTL: 10 * time.Minute})
//	img, err := images.Load("input/photo.jpg")
package cache
