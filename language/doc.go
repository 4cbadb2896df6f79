// Package language resolves caller-supplied ISO language tags into the
// codes an SAP backend actually accepts.
//
// Older releases (R/3 4.x through ECC) only understand single-letter SAP
// language keys ("E" for English, "L" for Polish); S/4HANA releases accept
// ISO 639-1 tags natively. Resolution is version-aware and fails closed:
// an unknown tag is an error, never a silent fallback to English, because
// wrong-language metadata is worse than no metadata.
package language
