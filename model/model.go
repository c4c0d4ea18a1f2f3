package model

import (
	"github.com/bwmarrin/snowflake"
	"github.com/khanghh/konbase/params"
	"gorm.io/gorm"
)

var snowflakeNode *snowflake.Node

// Models are the tables owned or touched by this service. Profile is owned
// by the identity platform and is migrated here only for local setups.
var Models = []interface{}{
	&Profile{}, &TOTPCredential{}, &RecoveryKey{}, &AuditLog{},
}

func init() {
	var err error
	snowflakeNode, err = snowflake.NewNode(params.SnowflakeNodeID)
	if err != nil {
		panic(err)
	}
}

func GenerateID() int64 {
	return snowflakeNode.Generate().Int64()
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models...)
}
