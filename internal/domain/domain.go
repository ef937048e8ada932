package domain

import (
	"github.com/openfolk/contacts-backend/internal/domain/contacts"
)

// Alias hub: downstream packages import this package as `types` and reach
// every persisted model through it.

type Account = contacts.Account
type RawContact = contacts.RawContact
type DataRow = contacts.DataRow
type PhoneLookup = contacts.PhoneLookup
type NameLookup = contacts.NameLookup
type Contact = contacts.Contact
type AggregationException = contacts.AggregationException
type Group = contacts.Group
type DataUsageStat = contacts.DataUsageStat
type DeleteLog = contacts.DeleteLog

type AggregationMode = contacts.AggregationMode
type ExceptionType = contacts.ExceptionType
type DataKind = contacts.DataKind
type UsageKind = contacts.UsageKind

const (
	AggregationDefault      = contacts.AggregationDefault
	AggregationDisabled     = contacts.AggregationDisabled
	AggregationKeepSeparate = contacts.AggregationKeepSeparate

	KeepTogether = contacts.KeepTogether
	KeepSeparate = contacts.KeepSeparate

	KindName            = contacts.KindName
	KindNickname        = contacts.KindNickname
	KindPhone           = contacts.KindPhone
	KindEmail           = contacts.KindEmail
	KindOrganization    = contacts.KindOrganization
	KindPhoto           = contacts.KindPhoto
	KindNote            = contacts.KindNote
	KindIM              = contacts.KindIM
	KindPostal          = contacts.KindPostal
	KindGroupMembership = contacts.KindGroupMembership

	UsageCall      = contacts.UsageCall
	UsageShortText = contacts.UsageShortText
	UsageLongText  = contacts.UsageLongText

	UnpinnedPosition = contacts.UnpinnedPosition
)
