package main

import (
	"github.com/bringyour/opsync/opsync"
)

// a small scene document used by `demo` and `send`

var (
	sceneName       = opsync.NewProperty("Name", "string")
	sceneDuration   = opsync.NewProperty("Duration", "float64")
	sceneLayers     = opsync.NewProperty("Layers", "list")
	sceneBackground = opsync.NewProperty("Background", "object")
	// editor state only
	sceneSelection = opsync.NewUntrackedProperty("Selection", "string")

	layerName = opsync.NewProperty("Name", "string")

	backgroundColor = opsync.NewProperty("Color", "string")

	animationKeyFrames = opsync.NewProperty("KeyFrames", "list")
)

func newScene(name string) *opsync.Object {
	scene := opsync.NewObject(
		"Scene",
		sceneName,
		sceneDuration,
		sceneLayers,
		sceneBackground,
		sceneSelection,
	)
	scene.SetValue(sceneName, name)
	scene.SetValue(sceneDuration, 10.0)
	scene.SetValue(sceneLayers, opsync.NewList())
	scene.SetValue(sceneBackground, newBackground("#000000"))
	return scene
}

func newLayer(name string) *opsync.Object {
	layer := opsync.NewObject("Layer", layerName)
	layer.SetValue(layerName, name)
	layer.AddEngineProperty(opsync.NewAnimatableValue("Opacity", "float64", 1.0))
	layer.AddEngineProperty(opsync.NewValue("Visible", "bool", true))
	return layer
}

func newBackground(color string) *opsync.Object {
	background := opsync.NewObject("Background", backgroundColor)
	background.SetValue(backgroundColor, color)
	return background
}

type keyFrame struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

func newKeyFrameAnimation(keyFrames ...keyFrame) *opsync.Object {
	animation := opsync.NewObject("KeyFrameAnimation", animationKeyFrames)
	items := []any{}
	for _, k := range keyFrames {
		items = append(items, k)
	}
	animation.SetValue(animationKeyFrames, opsync.NewList(items...))
	return animation
}

// runs a scripted edit session against the scene
func editScene(session *opsync.Session, scene *opsync.Object) error {
	layers := scene.GetValue(sceneLayers).(*opsync.List)

	intro := newLayer("Intro")
	title := newLayer("Title")
	credits := newLayer("Credits")
	edits := []func() error{
		func() error { return scene.SetValue(sceneName, "Opening") },
		func() error { return layers.Add(intro, title) },
		func() error { return layers.Add(credits) },
		func() error { return layers.Move(2, 0) },
		func() error { return title.SetValue(layerName, "Main Title") },
		func() error {
			opacity := title.EngineProperty("Opacity").(*opsync.AnimatableValue)
			return opacity.SetCurrentValue(0.5)
		},
		func() error {
			opacity := title.EngineProperty("Opacity").(*opsync.AnimatableValue)
			return opacity.SetAnimation(newKeyFrameAnimation(
				keyFrame{Time: 0, Value: 0},
				keyFrame{Time: 1, Value: 1},
			))
		},
		func() error {
			opacity := title.EngineProperty("Opacity").(*opsync.AnimatableValue)
			animation := opacity.Animation().(*opsync.Object)
			keyFrames := animation.GetValue(animationKeyFrames).(*opsync.List)
			return keyFrames.Add(keyFrame{Time: 2, Value: 0.25})
		},
		func() error {
			opacity := intro.EngineProperty("Opacity").(*opsync.AnimatableValue)
			return opacity.SetExpression("sin(t)")
		},
		func() error { return scene.SetValue(sceneBackground, newBackground("#202020")) },
		func() error { return scene.SetValue(sceneSelection, "Title") },
		// a remote edit is applied without publishing
		func() error {
			return session.Apply(func() error {
				return scene.SetValue(sceneDuration, 12.0)
			})
		},
		func() error { return layers.Remove(intro) },
	}
	for _, edit := range edits {
		if err := edit(); err != nil {
			return err
		}
	}
	return nil
}
