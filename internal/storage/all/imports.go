// Package all registers every built-in warehouse backend with the storage
// factory. Import it for side effects:
//
//	import _ "oif/internal/storage/all"
package all

import (
	_ "oif/internal/storage/mssql"
	_ "oif/internal/storage/mysql"
	_ "oif/internal/storage/postgres"
	_ "oif/internal/storage/sqlite"
)
