package repos

import (
	"gorm.io/gorm"

	"github.com/openfolk/contacts-backend/internal/data/repos/contacts"
	"github.com/openfolk/contacts-backend/internal/platform/logger"
)

type AccountRepo = contacts.AccountRepo
type RawContactRepo = contacts.RawContactRepo
type DataRowRepo = contacts.DataRowRepo
type ContactRepo = contacts.ContactRepo
type ExceptionRepo = contacts.ExceptionRepo
type GroupRepo = contacts.GroupRepo
type UsageStatRepo = contacts.UsageStatRepo
type DeleteLogRepo = contacts.DeleteLogRepo

func NewAccountRepo(db *gorm.DB, baseLog *logger.Logger) AccountRepo {
	return contacts.NewAccountRepo(db, baseLog)
}
func NewRawContactRepo(db *gorm.DB, baseLog *logger.Logger) RawContactRepo {
	return contacts.NewRawContactRepo(db, baseLog)
}
func NewDataRowRepo(db *gorm.DB, baseLog *logger.Logger) DataRowRepo {
	return contacts.NewDataRowRepo(db, baseLog)
}
func NewContactRepo(db *gorm.DB, baseLog *logger.Logger) ContactRepo {
	return contacts.NewContactRepo(db, baseLog)
}
func NewExceptionRepo(db *gorm.DB, baseLog *logger.Logger) ExceptionRepo {
	return contacts.NewExceptionRepo(db, baseLog)
}
func NewGroupRepo(db *gorm.DB, baseLog *logger.Logger) GroupRepo {
	return contacts.NewGroupRepo(db, baseLog)
}
func NewUsageStatRepo(db *gorm.DB, baseLog *logger.Logger) UsageStatRepo {
	return contacts.NewUsageStatRepo(db, baseLog)
}
func NewDeleteLogRepo(db *gorm.DB, baseLog *logger.Logger) DeleteLogRepo {
	return contacts.NewDeleteLogRepo(db, baseLog)
}

// Bundle groups every repo so services and wiring take one dependency.
type Bundle struct {
	Accounts    AccountRepo
	RawContacts RawContactRepo
	DataRows    DataRowRepo
	Contacts    ContactRepo
	Exceptions  ExceptionRepo
	Groups      GroupRepo
	UsageStats  UsageStatRepo
	DeleteLogs  DeleteLogRepo
}

func NewBundle(db *gorm.DB, baseLog *logger.Logger) *Bundle {
	return &Bundle{
		Accounts:    NewAccountRepo(db, baseLog),
		RawContacts: NewRawContactRepo(db, baseLog),
		DataRows:    NewDataRowRepo(db, baseLog),
		Contacts:    NewContactRepo(db, baseLog),
		Exceptions:  NewExceptionRepo(db, baseLog),
		Groups:      NewGroupRepo(db, baseLog),
		UsageStats:  NewUsageStatRepo(db, baseLog),
		DeleteLogs:  NewDeleteLogRepo(db, baseLog),
	}
}
