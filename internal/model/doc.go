// Package model provides the domain types shared by every geonudge package.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key design constraints:
//   - All JSON tags use snake_case
//   - Distances are metres, coordinates decimal degrees (WGS84)
//   - User-supplied text is NFC-normalised before it is compared or stored
package model
