package models

// All lists the models owned by the mailsync schema, in migration order
func All() []interface{} {
	return []interface{}{
		&Mailbox{},
		&MailboxSyncState{},
		&EmailThread{},
		&Email{},
		&EmailAttachment{},
		&Order{},
		&SyncRun{},
	}
}
