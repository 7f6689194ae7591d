package domain

import "strings"

// Sector is a fixed department code. It classifies letters and scopes non-superuser actors.
type Sector string

const (
	SectorGoverning   Sector = "GOVERNING"
	SectorHealth      Sector = "HEALTH"
	SectorDevelopment Sector = "DEVELOPMENT"
	SectorIncome      Sector = "INCOME"
	SectorAccounts    Sector = "ACCOUNTS"
)

// SectorAll is the filter value selecting every sector in admin views.
const SectorAll = "ALL"

// Sectors lists the known sectors in display order.
var Sectors = []Sector{
	SectorGoverning,
	SectorHealth,
	SectorDevelopment,
	SectorIncome,
	SectorAccounts,
}

var sectorLabels = map[Sector]string{
	SectorGoverning:   "Governing",
	SectorHealth:      "Health",
	SectorDevelopment: "Development",
	SectorIncome:      "Income",
	SectorAccounts:    "Accounts",
}

// Valid reports whether s is one of the fixed sector codes.
func (s Sector) Valid() bool {
	_, ok := sectorLabels[s]
	return ok
}

// Label returns the display name, or the raw code when unknown.
func (s Sector) Label() string {
	if label, ok := sectorLabels[s]; ok {
		return label
	}
	return string(s)
}

// ParseSector normalizes and validates a sector code.
func ParseSector(raw string) (Sector, bool) {
	s := Sector(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// OfficerRole identifies the administrating officer of a letter.
type OfficerRole string

const (
	OfficerChairman  OfficerRole = "CHAIRMAN"
	OfficerSecretary OfficerRole = "SECRETARY"
	OfficerCMO       OfficerRole = "CMO"
	OfficerHOD       OfficerRole = "HOD"
)

// OfficerRoles lists the known roles in display order.
var OfficerRoles = []OfficerRole{
	OfficerChairman,
	OfficerSecretary,
	OfficerCMO,
	OfficerHOD,
}

var officerLabels = map[OfficerRole]string{
	OfficerChairman:  "සභාපති",
	OfficerSecretary: "ලේකම්",
	OfficerCMO:       "ප්‍රධාන කළමණාකරන නිළධාරී",
	OfficerHOD:       "අංශ ප්‍රධානී",
}

func (r OfficerRole) Valid() bool {
	_, ok := officerLabels[r]
	return ok
}

func (r OfficerRole) Label() string {
	if label, ok := officerLabels[r]; ok {
		return label
	}
	return string(r)
}

// ParseOfficerRole normalizes and validates an officer role code.
func ParseOfficerRole(raw string) (OfficerRole, bool) {
	r := OfficerRole(strings.ToUpper(strings.TrimSpace(raw)))
	return r, r.Valid()
}

// SectorLabels returns a copy of the sector display-name mapping.
func SectorLabels() map[Sector]string {
	out := make(map[Sector]string, len(sectorLabels))
	for k, v := range sectorLabels {
		out[k] = v
	}
	return out
}

// OfficerRoleLabels returns a copy of the officer role display-name mapping.
func OfficerRoleLabels() map[OfficerRole]string {
	out := make(map[OfficerRole]string, len(officerLabels))
	for k, v := range officerLabels {
		out[k] = v
	}
	return out
}
