package app

import "github.com/tinysip/tinysip/internal/location"

// defaultUsers is the fixed list of provisioned softphones seeded at
// startup. Only these usernames may register; everything else yields a
// 404 on REGISTER or INVITE.
func defaultUsers() []location.Entry {
	return []location.Entry{
		{Username: "1001", Password: "1001", IP: "0.0.0.0", Port: 0, Realm: "tinysip.local"},
		{Username: "1002", Password: "1002", IP: "0.0.0.0", Port: 0, Realm: "tinysip.local"},
		{Username: "1003", Password: "1003", IP: "0.0.0.0", Port: 0, Realm: "tinysip.local"},
		{Username: "1004", Password: "1004", IP: "0.0.0.0", Port: 0, Realm: "tinysip.local"},
	}
}
