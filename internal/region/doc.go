// Package region stores per-cell records in region files laid out the way the
// external client expects: r.<regionX>.<regionZ>.mca, a two-sector header
// (slot locations and timestamps) followed by 4 KiB payload sectors holding
// zlib-compressed records.
//
// Writes never touch the live file. Opening a region copies it into a
// working file next to it; every slot update is made there (payload synced
// before the slot word points at it) and Commit renames the working file
// over the live one. Abort discards the working file, so a cancelled or
// failed pass leaves the previous committed file in place.
//
// A Set is the pass-scoped map of Storage handles keyed by category
// ("<dimension>/entities"). It is owned by one save pass, gives each region
// file a single writer, and finalizes every touched file at the end of the
// pass.
package region
