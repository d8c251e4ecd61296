package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.SetMaterialStatusActivity)
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.ChunkTextActivity)
	w.RegisterActivity(a.SaveContentActivity)
	w.RegisterActivity(a.EmbedAndIndexActivity)
	w.RegisterActivity(a.DropChunksActivity)
}
