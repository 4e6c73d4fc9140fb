package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "messages",
			"type": "base",
			"system": false,
			"fields": [
				{
					"autogeneratePattern": "[a-z0-9]{15}",
					"hidden": false,
					"max": 15,
					"min": 15,
					"name": "id",
					"pattern": "^[a-z0-9]+$",
					"presentable": false,
					"primaryKey": true,
					"required": true,
					"system": true,
					"type": "text"
				},
				{
					"name": "sender",
					"type": "relation",
					"collectionId": "_pb_users_auth_",
					"cascadeDelete": false,
					"maxSelect": 1,
					"minSelect": 0,
					"required": true
				},
				{
					"name": "receiver",
					"type": "relation",
					"collectionId": "_pb_users_auth_",
					"cascadeDelete": false,
					"maxSelect": 1,
					"minSelect": 0,
					"required": true
				},
				{
					"name": "sender_name",
					"type": "text"
				},
				{
					"name": "text",
					"type": "text",
					"required": true
				},
				{
					"name": "created",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": false
				}
			]
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("messages")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
