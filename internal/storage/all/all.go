// Package all links every storage backend into the binary.
package all

import (
	_ "fashionetl/internal/storage/mssql"
	_ "fashionetl/internal/storage/postgres"
	_ "fashionetl/internal/storage/sqlite"
)
